package payment

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// transferMethodID is the 4-byte selector of ERC-20 transfer(address,uint256).
const transferMethodID = "a9059cbb"

// decodeTransfer extracts the recipient and amount from the call data of an
// ERC-20 transfer. Call data layout: 4-byte selector, 32-byte address word,
// 32-byte amount word.
func decodeTransfer(input string) (recipient string, amount *big.Int, err error) {
	data := strings.TrimPrefix(strings.ToLower(input), "0x")

	// Exactly one selector plus two argument words; trailing bytes mean this
	// is not the plain transfer frame the contract defines.
	const wantLen = 8 + 64 + 64
	if len(data) != wantLen {
		return "", nil, fmt.Errorf("call data is %d hex chars, want %d", len(data), wantLen)
	}

	if data[:8] != transferMethodID {
		return "", nil, fmt.Errorf("not a transfer call: selector %s", data[:8])
	}

	// Address occupies the low 20 bytes of the first argument word.
	addrWord := data[8 : 8+64]
	recipient = "0x" + addrWord[24:]
	if _, err := hex.DecodeString(addrWord); err != nil {
		return "", nil, fmt.Errorf("invalid recipient word: %w", err)
	}

	amountWord := data[8+64 : wantLen]
	amount, ok := new(big.Int).SetString(amountWord, 16)
	if !ok {
		return "", nil, fmt.Errorf("invalid amount word %q", amountWord)
	}

	return recipient, amount, nil
}
