package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"presale/native/sale"
)

type purchaseStableParams struct {
	Payer  string `json:"payer"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type purchaseNativeParams struct {
	Payer     string `json:"payer"`
	Amount    string `json:"amount"`
	SentValue string `json:"sentValue"`
}

type claimParams struct {
	Participant string `json:"participant"`
	Token       string `json:"token"`
}

type setRunningParams struct {
	Caller  string `json:"caller"`
	Running bool   `json:"running"`
}

type pauseParams struct {
	Caller string `json:"caller"`
}

type startClaimParams struct {
	Caller string `json:"caller"`
	TokenA string `json:"tokenA"`
	TokenB string `json:"tokenB"`
}

type entitlementParams struct {
	Participant string `json:"participant"`
	Token       string `json:"token"`
}

type eventsParams struct {
	Limit int `json:"limit"`
}

type purchaseResult struct {
	ID        string `json:"id"`
	Payer     string `json:"payer"`
	Asset     string `json:"asset"`
	Paid      string `json:"paid"`
	USDValue  string `json:"usdValue"`
	AmountA   string `json:"amountA"`
	AmountB   string `json:"amountB"`
	Timestamp int64  `json:"timestamp"`
}

type claimResult struct {
	ID          string `json:"id"`
	Participant string `json:"participant"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
}

type statusResult struct {
	Running        bool   `json:"running"`
	Paused         bool   `json:"paused"`
	ClaimStarted   bool   `json:"claimStarted"`
	ClaimStartTime int64  `json:"claimStartTime"`
	RewardTokenA   string `json:"rewardTokenA,omitempty"`
	RewardTokenB   string `json:"rewardTokenB,omitempty"`
}

type totalsResult struct {
	TotalSoldA string `json:"totalSoldA"`
	TotalSoldB string `json:"totalSoldB"`
}

type entitlementResult struct {
	Participant string `json:"participant"`
	Token       string `json:"token"`
	Deposited   string `json:"deposited"`
	LastClaimAt int64  `json:"lastClaimAt"`
}

func (s *Server) handlePurchaseStable(w http.ResponseWriter, req *RPCRequest) {
	var params purchaseStableParams
	if !decodeParams(w, req, &params) {
		return
	}
	payer, err := parseAddressParam(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := s.node.PurchaseWithStable(payer, params.Asset, amount)
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newPurchaseResult(receipt))
}

func (s *Server) handlePurchaseNative(w http.ResponseWriter, req *RPCRequest) {
	var params purchaseNativeParams
	if !decodeParams(w, req, &params) {
		return
	}
	payer, err := parseAddressParam(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sent, err := parseAmountParam(params.SentValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := s.node.PurchaseWithNative(payer, amount, sent)
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newPurchaseResult(receipt))
}

func (s *Server) handleClaim(w http.ResponseWriter, req *RPCRequest) {
	var params claimParams
	if !decodeParams(w, req, &params) {
		return
	}
	participant, err := parseAddressParam(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	token, err := sale.ParseRewardToken(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := s.node.Claim(participant, token)
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimResult{
		ID:          receipt.ID,
		Participant: receipt.Participant.Hex(),
		Token:       receipt.Token.String(),
		Amount:      receipt.Amount.String(),
		Timestamp:   receipt.Timestamp,
	})
}

func (s *Server) handleSetRunning(w http.ResponseWriter, req *RPCRequest) {
	var params setRunningParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.SetRunning(caller, params.Running); err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"running": params.Running})
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest, paused bool) {
	var params pauseParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if paused {
		err = s.node.Pause(caller)
	} else {
		err = s.node.Unpause(caller)
	}
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": paused})
}

func (s *Server) handleStartClaim(w http.ResponseWriter, req *RPCRequest) {
	var params startClaimParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tokenA, err := parseAddressParam(params.TokenA)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tokenB, err := parseAddressParam(params.TokenB)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.StartClaim(caller, tokenA, tokenB); err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"claimStarted": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, req *RPCRequest) {
	state, err := s.node.Status()
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	result := statusResult{
		Running:        state.Running,
		Paused:         state.Paused,
		ClaimStarted:   state.ClaimStarted,
		ClaimStartTime: state.ClaimStartTime,
	}
	if state.RewardTokenA != (common.Address{}) {
		result.RewardTokenA = state.RewardTokenA.Hex()
	}
	if state.RewardTokenB != (common.Address{}) {
		result.RewardTokenB = state.RewardTokenB.Hex()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTotals(w http.ResponseWriter, req *RPCRequest) {
	soldA, err := s.node.TotalSold(sale.RewardTokenA)
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	soldB, err := s.node.TotalSold(sale.RewardTokenB)
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totalsResult{TotalSoldA: soldA.String(), TotalSoldB: soldB.String()})
}

func (s *Server) handleEntitlement(w http.ResponseWriter, req *RPCRequest) {
	var params entitlementParams
	if !decodeParams(w, req, &params) {
		return
	}
	participant, err := parseAddressParam(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	token, err := sale.ParseRewardToken(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ent, err := s.node.EntitlementOf(participant, token)
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, entitlementResult{
		Participant: participant.Hex(),
		Token:       token.String(),
		Deposited:   ent.Deposited.String(),
		LastClaimAt: ent.LastClaimAt,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, req *RPCRequest) {
	params := eventsParams{}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
			return
		}
	}
	writeResult(w, req.ID, s.node.Events(params.Limit))
}

func newPurchaseResult(receipt sale.PurchaseReceipt) purchaseResult {
	return purchaseResult{
		ID:        receipt.ID,
		Payer:     receipt.Payer.Hex(),
		Asset:     receipt.Asset,
		Paid:      receipt.Paid.String(),
		USDValue:  receipt.USDValue.String(),
		AmountA:   receipt.AmountA.String(),
		AmountB:   receipt.AmountB.String(),
		Timestamp: receipt.Timestamp,
	}
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single params object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return false
	}
	return true
}

func parseAddressParam(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmountParam(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

// writeSaleError maps engine failures onto HTTP statuses and JSON-RPC codes.
func writeSaleError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusInternalServerError
	code := codeServerError
	switch {
	case errors.Is(err, sale.ErrNotOwner):
		status = http.StatusForbidden
		code = codeUnauthorized
	case errors.Is(err, sale.ErrBelowMinimum),
		errors.Is(err, sale.ErrAboveMaximum),
		errors.Is(err, sale.ErrCapExceeded),
		errors.Is(err, sale.ErrZeroAddress),
		errors.Is(err, sale.ErrInsufficientPayment),
		errors.Is(err, sale.ErrUnsupportedAsset):
		status = http.StatusBadRequest
		code = codeInvalidParams
	case errors.Is(err, sale.ErrSaleNotRunning),
		errors.Is(err, sale.ErrSalePaused),
		errors.Is(err, sale.ErrAlreadyPaused),
		errors.Is(err, sale.ErrNotPaused),
		errors.Is(err, sale.ErrClaimNotStarted),
		errors.Is(err, sale.ErrClaimAlreadyStarted),
		errors.Is(err, sale.ErrCliffNotReached),
		errors.Is(err, sale.ErrNothingDeposited),
		errors.Is(err, sale.ErrNothingClaimable),
		errors.Is(err, sale.ErrInsufficientEscrow),
		errors.Is(err, sale.ErrReentrantCall):
		status = http.StatusConflict
	case errors.Is(err, sale.ErrInsufficientAllowance),
		errors.Is(err, sale.ErrTransferFailed),
		errors.Is(err, sale.ErrNonPositivePrice),
		errors.Is(err, sale.ErrStalePrice):
		status = http.StatusBadGateway
	}
	writeError(w, status, id, code, err.Error(), nil)
}
