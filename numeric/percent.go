package numeric

import "github.com/pkg/errors"

// ErrOverflow is returned whenever a computation would exceed MaxShareSupply.
var ErrOverflow = errors.New("numeric: result exceeds max share supply")

// CalculatePercent computes floor(value*bps/10000) using a wide
// intermediate, matching calculate_percent() in db_market.cpp. bps is
// expressed in basis points (GraphenePercent100 == 100%).
func CalculatePercent(value *Uint, bps uint16) (*Uint, error) {
	r := value.MulDiv(NewUint(uint64(bps)), NewUint(uint64(GraphenePercent100)))
	if err := r.CheckMaxShareSupply(); err != nil {
		return nil, err
	}
	return r, nil
}
