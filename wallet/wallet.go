package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrProofInvalid is returned when the wallet backend has no matching
// transaction for a tx id / tx key / address triple. The absence of a match
// is a recoverable outcome for the polling loop, not a transport failure.
var ErrProofInvalid = errors.New("invalid payment proof or transaction not found")

// ErrRPC wraps any transport or protocol failure talking to the wallet
// backend. Callers branch on it to distinguish upstream failures from
// client errors.
var ErrRPC = errors.New("wallet rpc failure")

// Client is the narrow interface the facilitator consumes from
// monero-wallet-rpc. Transaction construction and key management stay on the
// wallet side.
type Client interface {
	// CreateAddress allocates a fresh receive subaddress.
	CreateAddress(ctx context.Context) (string, error)
	// CheckTxKey validates a payment proof and reports how much the
	// transaction transferred to the address and how many blocks confirm it.
	CheckTxKey(ctx context.Context, txID string, txKey string, address string) (received uint64, confirmations uint64, err error)
	// ReceivedByAddress sums confirmed incoming transfers and unconfirmed
	// pool entries for the address, so partially-confirmed payments are
	// visible to the polling loop.
	ReceivedByAddress(ctx context.Context, address string) (uint64, error)
}

type RPCClient struct {
	url        string
	httpClient *http.Client
}

func NewRPCClient(url string, timeout time.Duration) *RPCClient {
	return &RPCClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// backendError is a JSON-RPC level rejection as opposed to a transport
// failure. check_tx_key reports unknown transactions this way.
type backendError struct {
	method  string
	code    int
	message string
}

func (e *backendError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.method, e.message, e.code)
}

func (c *RPCClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: "0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRPC, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRPC, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRPC, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrRPC, method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrRPC, err)
	}
	if envelope.Error != nil {
		return &backendError{method: method, code: envelope.Error.Code, message: envelope.Error.Message}
	}
	if envelope.Result == nil {
		return fmt.Errorf("%w: %s returned no result", ErrRPC, method)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("%w: %v", ErrRPC, err)
	}
	return nil
}

type createAddressParams struct {
	AccountIndex int `json:"account_index"`
}

type createAddressResult struct {
	Address string `json:"address"`
}

func (c *RPCClient) CreateAddress(ctx context.Context) (string, error) {
	var result createAddressResult
	err := c.call(ctx, "create_address", createAddressParams{AccountIndex: 0}, &result)
	var be *backendError
	if errors.As(err, &be) {
		return "", fmt.Errorf("%w: %v", ErrRPC, err)
	}
	if err != nil {
		return "", err
	}
	if result.Address == "" {
		return "", fmt.Errorf("%w: create_address returned no address", ErrRPC)
	}
	return result.Address, nil
}

type checkTxKeyParams struct {
	TxID    string `json:"txid"`
	TxKey   string `json:"tx_key"`
	Address string `json:"address"`
}

type checkTxKeyResult struct {
	Received      uint64 `json:"received"`
	Confirmations uint64 `json:"confirmations"`
	InPool        bool   `json:"in_pool"`
}

func (c *RPCClient) CheckTxKey(ctx context.Context, txID string, txKey string, address string) (uint64, uint64, error) {
	var result checkTxKeyResult
	err := c.call(ctx, "check_tx_key", checkTxKeyParams{TxID: txID, TxKey: txKey, Address: address}, &result)
	var be *backendError
	if errors.As(err, &be) {
		return 0, 0, fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	if err != nil {
		return 0, 0, err
	}
	return result.Received, result.Confirmations, nil
}

type getTransfersParams struct {
	In           bool `json:"in"`
	Pool         bool `json:"pool"`
	AccountIndex int  `json:"account_index"`
}

type transferEntry struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type getTransfersResult struct {
	In   []transferEntry `json:"in"`
	Pool []transferEntry `json:"pool"`
}

func (c *RPCClient) ReceivedByAddress(ctx context.Context, address string) (uint64, error) {
	var result getTransfersResult
	err := c.call(ctx, "get_transfers", getTransfersParams{In: true, Pool: true, AccountIndex: 0}, &result)
	var be *backendError
	if errors.As(err, &be) {
		return 0, fmt.Errorf("%w: %v", ErrRPC, err)
	}
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, t := range result.In {
		if t.Address == address {
			total += t.Amount
		}
	}
	for _, t := range result.Pool {
		if t.Address == address {
			total += t.Amount
		}
	}
	return total, nil
}

var _ Client = (*RPCClient)(nil)
