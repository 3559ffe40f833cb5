package permit

import (
	"crypto/ecdsa"
	"encoding/binary"
	"math/big"

	"dex-router/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Authorization 资产持有人签名授予 spender 的一次性额度
type Authorization struct {
	Owner    types.Address
	Asset    types.Address
	Spender  types.Address
	Amount   *big.Int
	Nonce    uint64
	Deadline int64 // unix 秒
}

// Digest 计算签名摘要：
//
//	keccak256(chainId(4) ‖ service(20) ‖ owner(20) ‖ asset(20) ‖ spender(20) ‖ amount(32) ‖ nonce(8) ‖ deadline(8))
func (a Authorization) Digest(chainID uint32, service types.Address) common.Hash {
	buf := make([]byte, 0, 4+20*4+32+8+8)
	buf = binary.BigEndian.AppendUint32(buf, chainID)
	buf = append(buf, service[:]...)
	buf = append(buf, a.Owner[:]...)
	buf = append(buf, a.Asset[:]...)
	buf = append(buf, a.Spender[:]...)
	amount := a.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	buf = append(buf, common.LeftPadBytes(amount.Bytes(), 32)...)
	buf = binary.BigEndian.AppendUint64(buf, a.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.Deadline))
	return crypto.Keccak256Hash(buf)
}

// Sign 用持有人私钥签名，返回 65 字节 [R ‖ S ‖ V] 签名
func Sign(a Authorization, chainID uint32, service types.Address, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := a.Digest(chainID, service)
	return crypto.Sign(digest[:], key)
}

// Signer 从签名恢复签名者地址
func Signer(a Authorization, chainID uint32, service types.Address, sig []byte) (types.Address, error) {
	digest := a.Digest(chainID, service)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return types.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
