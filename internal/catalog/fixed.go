package catalog

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// fixedDecimalWidth is the only coefficient width this reader accepts.
// Any file whose header declares width 8 — the legacy layout — is
// rejected at session open, before a single record is decoded.
const fixedDecimalWidth = 16

// FixedDecimal is the catalog's on-disk representation of a price or size:
// an unscaled coefficient as a 16-byte big-endian magnitude plus a sign and
// a base-10 exponent, the same shape the Parquet catalog upstream uses for
// its fixed-width decimal columns.
type FixedDecimal struct {
	Raw      [fixedDecimalWidth]byte `json:"raw"`
	Exponent int32                   `json:"exp"`
	Negative bool                    `json:"neg"`
}

// EncodeFixedDecimal narrows d's unscaled coefficient into the 16-byte
// fixed width, erroring rather than truncating if it doesn't fit.
func EncodeFixedDecimal(d decimal.Decimal) (FixedDecimal, error) {
	coeff := d.Coefficient()
	mag := new(big.Int).Abs(coeff)
	if mag.BitLen() > fixedDecimalWidth*8 {
		return FixedDecimal{}, fmt.Errorf("catalog: coefficient of %s exceeds the 16-byte fixed width", d)
	}
	var fd FixedDecimal
	mag.FillBytes(fd.Raw[:])
	fd.Exponent = d.Exponent()
	fd.Negative = coeff.Sign() < 0
	return fd, nil
}

// Decode reconstructs the decimal value fd encodes.
func (fd FixedDecimal) Decode() decimal.Decimal {
	mag := new(big.Int).SetBytes(fd.Raw[:])
	if fd.Negative {
		mag.Neg(mag)
	}
	return decimal.NewFromBigInt(mag, fd.Exponent)
}
