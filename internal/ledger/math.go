package ledger

import "math/big"

const bpsDenominator = 10_000

var (
	zero   = big.NewInt(0)
	bpsDen = big.NewInt(bpsDenominator)
)

// mulDiv returns a*b/den with floor rounding.
func mulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Div(out, den)
}

// mulDivUp returns a*b/den rounded up. Used when burning shares for an
// asset amount so a full withdrawal never leaves residual dust.
func mulDivUp(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	rem := new(big.Int)
	out.DivMod(out, den, rem)
	if rem.Sign() > 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// applyBps returns amount*bps/10000.
func applyBps(amount *big.Int, bps uint32) *big.Int {
	return mulDiv(amount, big.NewInt(int64(bps)), bpsDen)
}

// clone copies a big.Int, treating nil as zero.
func clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func isPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
