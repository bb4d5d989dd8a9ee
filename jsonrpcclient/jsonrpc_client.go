package jsonrpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC error object returned by the relay.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// DecodeError wraps a response body that was not valid JSON-RPC, keeping the
// raw body around for debugging relay misbehavior.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SigningError wraps a failure to produce the request signature.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign request: %v", e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Client is a signed JSON-RPC client bound to one endpoint and one signing
// identity. It is safe for concurrent use.
type Client struct {
	url       string
	signer    Signer
	http      *http.Client
	log       *zap.Logger
	requestID atomic.Int64
}

// New creates a client. httpClient may be nil to use a default with a 30s
// timeout; log may be nil to disable logging. Request ids start from a
// time-derived seed so ids from separate client instances rarely collide,
// and increase strictly from there.
func New(url string, signer Signer, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		url:    url,
		signer: signer,
		http:   httpClient,
		log:    log,
	}
	c.requestID.Store(time.Now().UnixNano() % 1_000_000)
	return c
}

// Call performs one signed JSON-RPC call and unmarshals the result into
// result, which may be nil to discard it. A relay-reported error comes back
// as *RPCError.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	request := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	signature, err := c.signBody(body)
	if err != nil {
		return &SigningError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Flashbots-Signature", signature)

	c.log.Debug("rpc call", zap.String("method", method), zap.Int64("id", request.ID))
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var response JSONRPCResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return &DecodeError{Body: respBody, Err: err}
	}
	if response.Error != nil {
		return response.Error
	}
	if result == nil || len(response.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Result, result); err != nil {
		return &DecodeError{Body: response.Result, Err: err}
	}
	return nil
}

// signBody signs the personal-sign digest of the hex-encoded body hash, the
// format the relay verifies.
func (c *Client) signBody(body []byte) (string, error) {
	hashed := []byte(hexutil.Encode(crypto.Keccak256(body)))
	signature, err := c.signer.SignMessage(hashed)
	if err != nil {
		return "", err
	}
	return c.signer.Address().Hex() + ":" + hexutil.Encode(signature), nil
}
