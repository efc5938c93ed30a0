package mempool

import "fmt"

// FeeRate expresses a fee in satoshis per thousand bytes (vbytes), mirroring
// utils.FeeRate in the source this is ported from.
type FeeRate struct {
	SatoshisPerK int64
}

// NewFeeRate builds a FeeRate directly from a satoshis-per-kB figure.
func NewFeeRate(satoshisPerK int64) FeeRate {
	return FeeRate{SatoshisPerK: satoshisPerK}
}

// NewFeeRateWithSize derives a FeeRate from a fee paid over a given size.
func NewFeeRateWithSize(feePaid int64, size int) FeeRate {
	if size <= 0 {
		return FeeRate{}
	}
	return FeeRate{SatoshisPerK: feePaid * 1000 / int64(size)}
}

// GetFee returns the fee implied by this rate over the given number of
// bytes, rounding a nonzero fee up to 1 satoshi rather than down to 0.
func (r FeeRate) GetFee(size int) int64 {
	fee := r.SatoshisPerK * int64(size) / 1000
	if fee == 0 && size != 0 {
		if r.SatoshisPerK > 0 {
			return 1
		}
		if r.SatoshisPerK < 0 {
			return -1
		}
	}
	return fee
}

func (r FeeRate) String() string {
	return fmt.Sprintf("%d.%08d BTC/kvB", r.SatoshisPerK/100000000, r.SatoshisPerK%100000000)
}

// Less reports whether r is a strictly lower rate than other (ascending
// order: lower feerate sorts first).
func (r FeeRate) Less(other FeeRate) bool {
	return r.SatoshisPerK < other.SatoshisPerK
}
