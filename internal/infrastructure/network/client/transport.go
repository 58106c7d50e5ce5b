package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      uint64           `json:"id"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *entity.RPCError `json:"error,omitempty"`
}

// httpTransport is the terminal handler of the provider middleware chain: it
// POSTs the JSON-RPC envelope to the endpoint and decodes the response.
type httpTransport struct {
	client   *fasthttp.Client
	endpoint string
	timeout  time.Duration
	logger   *zap.Logger
	nextID   atomic.Uint64
}

func newHTTPTransport(endpoint string, timeout time.Duration, logger *zap.Logger) *httpTransport {
	return &httpTransport{
		client:   &fasthttp.Client{},
		endpoint: endpoint,
		timeout:  timeout,
		logger:   logger.Named("RPCTransport"),
	}
}

func (t *httpTransport) handle(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := jsonCodec.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      t.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON-RPC request for %s: %w", method, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(t.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		err = t.client.DoDeadline(req, resp, deadline)
	} else {
		err = t.client.DoTimeout(req, resp, t.timeout)
	}
	if err != nil {
		t.logger.Debug("JSON-RPC request failed at transport level",
			zap.String("method", method), zap.Error(err))
		return nil, fmt.Errorf("failed to execute JSON-RPC request %s: %w", method, err)
	}

	rawBody := resp.Body()

	var decoded rpcResponse
	if err := jsonCodec.Unmarshal(rawBody, &decoded); err == nil && decoded.Error != nil {
		// endpoints may answer with a JSON-RPC error object on any HTTP
		// status, including geo-block rejections
		return nil, decoded.Error
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		t.logger.Debug("JSON-RPC request returned non-OK status",
			zap.String("method", method),
			zap.Int("statusCode", resp.StatusCode()))
		return nil, fmt.Errorf("JSON-RPC request %s failed with status %d: %s",
			method, resp.StatusCode(), string(rawBody))
	}

	if err := jsonCodec.Unmarshal(rawBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON-RPC response for %s: %w", method, err)
	}
	return decoded.Result, nil
}
