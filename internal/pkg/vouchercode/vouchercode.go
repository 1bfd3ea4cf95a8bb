package vouchercode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet for voucher codes. 0/O, 1/I and L are excluded so codes printed on
// scratch cards survive bad fonts and handwriting.
const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// CodeLength is the stored length of a generated code (without separators).
const CodeLength = 12

const groupLen = 4

// Generate creates a cryptographically secure random voucher code. The code
// is returned in storage form, without separators.
func Generate() (string, error) {
	return generate(CodeLength)
}

func generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 31 below 256.
	const maxRandomByte = 248

	code := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			code[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(code), nil
}

// Format renders a stored code in printable groups, "WX7K-9P2M-4QZT" style.
func Format(code string) string {
	if len(code) <= groupLen {
		return code
	}

	var sb strings.Builder
	for i := 0; i < len(code); i += groupLen {
		if i > 0 {
			sb.WriteByte('-')
		}
		end := i + groupLen
		if end > len(code) {
			end = len(code)
		}
		sb.WriteString(code[i:end])
	}
	return sb.String()
}

// Normalize converts user input back to storage form: upper-cased, with
// separators and whitespace stripped. It does not validate the alphabet;
// unknown codes simply miss the lookup.
func Normalize(input string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(input) {
		switch r {
		case '-', ' ', '\t':
			continue
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
