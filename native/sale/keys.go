package sale

import (
	"github.com/ethereum/go-ethereum/common"
)

var (
	saleStatePrefix   = []byte("sale/state")
	totalSoldPrefix   = []byte("sale/totalsold/")
	entitlementPrefix = []byte("sale/entitlement/")
)

func saleStateKey() []byte {
	return saleStatePrefix
}

func totalSoldKey(token RewardToken) []byte {
	suffix := token.String()
	buf := make([]byte, len(totalSoldPrefix)+len(suffix))
	copy(buf, totalSoldPrefix)
	copy(buf[len(totalSoldPrefix):], suffix)
	return buf
}

func entitlementKey(participant common.Address, token RewardToken) []byte {
	suffix := participant.Hex() + "/" + token.String()
	buf := make([]byte, len(entitlementPrefix)+len(suffix))
	copy(buf, entitlementPrefix)
	copy(buf[len(entitlementPrefix):], suffix)
	return buf
}
