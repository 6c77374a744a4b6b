package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/config"
	"github.com/solrun-hq/solrunner/pkg/httpx"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
)

const (
	requestTimeout = 15 * time.Second
	requestRetries = 2

	// maxRouteAccounts bounds route complexity so the swap transaction stays
	// within the account limit once priority fee instructions are added.
	maxRouteAccounts = 64
)

// Client talks to the Jupiter v6 swap aggregator.
type Client struct {
	cfg    config.JupiterConfig
	http   *httpx.Client
	logger logger.Logger
}

func NewClient(cfg config.JupiterConfig, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		cfg:    cfg,
		http:   httpx.New(requestTimeout, requestRetries),
		logger: log,
	}
}

// Quote is a priced route returned by the aggregator. The raw JSON is kept
// because the swap endpoint expects the quote echoed back verbatim.
type Quote struct {
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
	raw        json.RawMessage

	// FeeApplied marks that the quote was priced with the platform fee, so
	// the swap request must carry a fee account for the input mint.
	FeeApplied bool
}

type quoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	Error      string `json:"error"`
	ErrorCode  string `json:"errorCode"`
}

// GetQuote prices a swap of amount base units of inputMint into outputMint.
// allowPlatformFee disables the platform fee for pairs where a fee account
// cannot be attached, such as token-2022 mints.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, allowPlatformFee bool) (*Quote, error) {
	withFee := c.cfg.PlatformFeeBps > 0 && allowPlatformFee
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("swapMode", "ExactIn")
	q.Set("dynamicSlippage", "true")
	q.Set("autoSlippage", "true")
	q.Set("maxAccounts", strconv.Itoa(maxRouteAccounts))
	if withFee {
		q.Set("platformFeeBps", strconv.Itoa(c.cfg.PlatformFeeBps))
	}
	endpoint := c.cfg.BaseURL + "/quote?" + q.Encode()

	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, endpoint, nil, &raw); err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			// the aggregator reports unroutable pairs as a 400 with a reason
			var resp quoteResponse
			if json.Unmarshal(statusErr.Body, &resp) == nil && resp.Error != "" {
				metrics.QuoteRequests.WithLabelValues("no_route").Inc()
				return nil, apperr.Newf(apperr.CodeNoRoute, "no route from %s to %s: %s", inputMint, outputMint, resp.Error)
			}
		}
		metrics.QuoteRequests.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.CodeUnavailable, "quote request failed", err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		metrics.QuoteRequests.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.CodeUnavailable, "malformed quote response", err)
	}
	if resp.Error != "" {
		metrics.QuoteRequests.WithLabelValues("no_route").Inc()
		return nil, apperr.Newf(apperr.CodeNoRoute, "no route from %s to %s: %s", inputMint, outputMint, resp.Error)
	}
	if resp.OutAmount == "" || resp.OutAmount == "0" {
		metrics.QuoteRequests.WithLabelValues("no_route").Inc()
		return nil, apperr.Newf(apperr.CodeNoRoute, "no route from %s to %s", inputMint, outputMint)
	}

	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, "malformed quote inAmount", err)
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, "malformed quote outAmount", err)
	}

	metrics.QuoteRequests.WithLabelValues("ok").Inc()
	c.logger.InfoWith(logger.Quote, "quote %s -> %s: %d in, %d out", inputMint, outputMint, inAmount, outAmount)
	return &Quote{
		InputMint:  resp.InputMint,
		OutputMint: resp.OutputMint,
		InAmount:   inAmount,
		OutAmount:  outAmount,
		raw:        raw,
		FeeApplied: withFee,
	}, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage          `json:"quoteResponse"`
	UserPublicKey             string                   `json:"userPublicKey"`
	WrapAndUnwrapSol          bool                     `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool                     `json:"dynamicComputeUnitLimit"`
	DynamicSlippage           bool                     `json:"dynamicSlippage"`
	FeeAccount                string                   `json:"feeAccount,omitempty"`
	PrioritizationFeeLamports *prioritizationFeeConfig `json:"prioritizationFeeLamports,omitempty"`
}

type prioritizationFeeConfig struct {
	PriorityLevelWithMaxLamports priorityLevelWithMaxLamports `json:"priorityLevelWithMaxLamports"`
}

type priorityLevelWithMaxLamports struct {
	MaxLamports   uint64 `json:"maxLamports"`
	PriorityLevel string `json:"priorityLevel"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	Error                string `json:"error"`
}

// BuildSwapTransaction asks the aggregator to assemble the swap transaction
// for a previously fetched quote. feeAccount is the fee wallet's token
// account for the input mint; it is only attached when the quote was priced
// with the platform fee. Returns the serialized unsigned transaction.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey, feeAccount string) ([]byte, error) {
	req := swapRequest{
		QuoteResponse:           quote.raw,
		UserPublicKey:           userPublicKey,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
		DynamicSlippage:         true,
		PrioritizationFeeLamports: &prioritizationFeeConfig{
			PriorityLevelWithMaxLamports: priorityLevelWithMaxLamports{
				MaxLamports:   c.cfg.PriorityFeeMaxLamports,
				PriorityLevel: "veryHigh",
			},
		},
	}
	if quote.FeeApplied && feeAccount != "" {
		req.FeeAccount = feeAccount
	}

	var resp swapResponse
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/swap", req, nil, &resp); err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, "swap assembly failed", err)
	}
	if resp.Error != "" {
		return nil, apperr.Newf(apperr.CodeUnavailable, "swap assembly rejected: %s", resp.Error)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, "malformed swap transaction", err)
	}
	return raw, nil
}
