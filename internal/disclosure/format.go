package disclosure

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ggonzalez94/dotsign/internal/decode"
	"github.com/ggonzalez94/dotsign/internal/ss58"
)

type formatter struct {
	token Token
	ss58  uint16
}

func (f formatter) field(fd decode.Field) string {
	if fd.Value.Kind == decode.KindInt && isBalance(fd.TypeName) {
		return f.amount(fd.Value.Int)
	}
	return f.value(fd.Value)
}

func (f formatter) value(v decode.Value) string {
	switch v.Kind {
	case decode.KindAccount:
		return f.account(v.Bytes)
	case decode.KindInt:
		if v.Int == nil {
			return "0"
		}
		return v.Int.String()
	case decode.KindBool:
		if v.Bool {
			return "Yes"
		}
		return "No"
	case decode.KindText, decode.KindBits:
		if hasUnprintable(v.Text) {
			return strconv.Quote(v.Text)
		}
		return v.Text
	case decode.KindBytes:
		return bytesText(v.Bytes)
	case decode.KindNone:
		return "None"
	case decode.KindCall:
		if v.Call == nil {
			return ""
		}
		return action(*v.Call)
	case decode.KindSequence:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = f.value(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case decode.KindComposite:
		return "{" + f.fields(v.Fields) + "}"
	case decode.KindVariant:
		if id, ok := v.AccountID(); ok {
			return f.account(id)
		}
		if len(v.Fields) == 0 {
			return v.Variant
		}
		return v.Variant + "(" + f.fields(v.Fields) + ")"
	default:
		return ""
	}
}

func (f formatter) fields(fields []decode.Field) string {
	parts := make([]string, len(fields))
	for i, fd := range fields {
		if fd.Name == "" {
			parts[i] = f.field(fd)
			continue
		}
		parts[i] = Humanize(fd.Name) + ": " + f.field(fd)
	}
	return strings.Join(parts, ", ")
}

func (f formatter) account(id []byte) string {
	addr, err := ss58.Encode(id, f.ss58)
	if err != nil {
		return "0x" + hex.EncodeToString(id)
	}
	return addr
}

// amount renders planck as a token amount, e.g. 12500000000 at 10 decimals
// as "1.25 DOT".
func (f formatter) amount(planck *big.Int) string {
	return FormatAmount(planck, f.token)
}

func FormatAmount(planck *big.Int, token Token) string {
	if planck == nil {
		planck = new(big.Int)
	}
	s := decimal.NewFromBigInt(planck, -int32(token.Decimals)).String()
	if token.Symbol == "" {
		return s
	}
	return s + " " + token.Symbol
}

func isBalance(typeName string) bool {
	return strings.Contains(typeName, "Balance")
}

// bytesText shows printable UTF-8 as text and anything else as hex. Line
// breaks and escape sequences count as unprintable: they could fake rows.
func bytesText(b []byte) string {
	if len(b) > 0 && utf8.Valid(b) && !hasUnprintable(string(b)) {
		return string(b)
	}
	return "0x" + hex.EncodeToString(b)
}

// Escape writes unprintable runes, line breaks and terminal escapes
// included, as Go escapes so a row always renders on one line.
func Escape(s string) string {
	if !hasUnprintable(s) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || unicode.IsPrint(r) {
			b.WriteRune(r)
			continue
		}
		q := strconv.QuoteRune(r)
		b.WriteString(q[1 : len(q)-1])
	}
	return b.String()
}

func hasUnprintable(s string) bool {
	for _, r := range s {
		if r != ' ' && !unicode.IsPrint(r) {
			return true
		}
	}
	return false
}

// Humanize turns snake_case and camelCase identifiers into title-cased
// words: transfer_keep_alive and transferKeepAlive both become
// "Transfer Keep Alive".
func Humanize(ident string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(ident)
	for i, r := range runes {
		switch {
		case r == '_' || r == ' ' || r == '-':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
