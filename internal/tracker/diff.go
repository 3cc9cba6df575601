package tracker

// ChangeKind classifies a detected change for one address.
type ChangeKind string

// Change kinds, in the order they are checked.
const (
	ChangeReceived    ChangeKind = "received"
	ChangeSent        ChangeKind = "sent"
	ChangeUnconfirmed ChangeKind = "unconfirmed"
	ChangeStatus      ChangeKind = "status"
	ChangeNewAddress  ChangeKind = "new_address"
)

// Change is the difference between two statuses of the same address.
type Change struct {
	Kind            ChangeKind `json:"kind"`
	Address         string     `json:"address"`
	Path            string     `json:"path"`
	PreviousBalance int64      `json:"previous_balance"`
	CurrentBalance  int64      `json:"current_balance"`
	BalanceChange   int64      `json:"balance_change"`
	PreviousUsed    bool       `json:"previous_used"`
	CurrentUsed     bool       `json:"current_used"`
	PreviousTxCount int        `json:"previous_tx_count"`
	CurrentTxCount  int        `json:"current_tx_count"`
}

// Diff compares two status lists by address. An address present in both
// lists yields a change when its balance, used flag or tx count differs; an
// address only in current yields a new-address change when it has activity.
// Changes follow the order of current.
func Diff(previous, current []AddressStatus) []Change {
	prev := make(map[string]AddressStatus, len(previous))
	for _, s := range previous {
		prev[s.Address] = s
	}

	var changes []Change
	for _, cur := range current {
		old, ok := prev[cur.Address]
		if !ok {
			if cur.Used || cur.Balance > 0 {
				changes = append(changes, Change{
					Kind:           ChangeNewAddress,
					Address:        cur.Address,
					Path:           cur.Path,
					CurrentBalance: cur.Balance,
					BalanceChange:  cur.Balance,
					CurrentUsed:    cur.Used,
					CurrentTxCount: cur.TxCount,
				})
			}
			continue
		}

		balanceChanged := cur.Balance != old.Balance
		usedChanged := cur.Used != old.Used
		txCountChanged := cur.TxCount != old.TxCount
		if !balanceChanged && !usedChanged && !txCountChanged {
			continue
		}

		var kind ChangeKind
		switch {
		case balanceChanged && cur.Balance > old.Balance:
			kind = ChangeReceived
		case balanceChanged:
			kind = ChangeSent
		case txCountChanged:
			kind = ChangeUnconfirmed
		default:
			kind = ChangeStatus
		}

		changes = append(changes, Change{
			Kind:            kind,
			Address:         cur.Address,
			Path:            cur.Path,
			PreviousBalance: old.Balance,
			CurrentBalance:  cur.Balance,
			BalanceChange:   cur.Balance - old.Balance,
			PreviousUsed:    old.Used,
			CurrentUsed:     cur.Used,
			PreviousTxCount: old.TxCount,
			CurrentTxCount:  cur.TxCount,
		})
	}

	return changes
}
