package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted: "

// RevertError is returned when a mined transaction failed
type RevertError struct {
	TxHash common.Hash
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "transaction reverted"
	}
	return revertPrefix + e.Reason
}

// RevertReason extracts the human readable reason embedded in a contract revert.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var re *RevertError
	if errors.As(err, &re) && re.Reason != "" {
		return re.Reason, true
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, revertPrefix); i >= 0 {
		return msg[i+len(revertPrefix):], true
	}
	return "", false
}
