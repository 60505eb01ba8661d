package goldapi_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"metalrates/internal/market"
	"metalrates/internal/provider"
	"metalrates/internal/provider/goldapi"
)

var liveBody = map[string]any{
	"timestamp":        1760860800,
	"metal":            "XAU",
	"currency":         "INR",
	"exchange":         "FOREXCOM",
	"symbol":           "FOREXCOM:XAUINR",
	"prev_close_price": 471402.5,
	"open_price":       471402.5,
	"low_price":        470011.0,
	"high_price":       476000.0,
	"open_time":        1760832000,
	"price":            474828.25,
	"ch":               3425.75,
	"chp":              0.73,
	"ask":              474900.0,
	"bid":              474750.0,
	"price_gram_24k":   15266.0,
	"price_gram_22k":   13983.6,
	"price_gram_21k":   13357.8,
	"price_gram_20k":   12721.7,
	"price_gram_18k":   11449.5,
	"price_gram_16k":   10177.4,
	"price_gram_14k":   8905.2,
	"price_gram_10k":   6360.8,
}

func TestGetQuote(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/api/XAU/INR", req.URL.Path)
			require.Equal(t, "test-key", req.Header.Get("x-access-token"))
			return okResponse(t, liveBody), nil
		}).
		Times(1)

	// Arrange: setup a new client
	client := goldapi.New("test-key", goldapi.WithHTTPClient(httpClient))

	// Act: call Fetch
	q, err := client.Fetch(t.Context(), provider.Request{Metal: market.Gold, Currency: market.INR, City: market.Mumbai})
	require.NoError(t, err)

	// Assert: the body is taken as-is, the city is echoed
	require.Equal(t, "XAU/INR", q.Symbol)
	require.Equal(t, market.Mumbai, q.City)
	require.Equal(t, "goldapi", q.Source)
	require.InEpsilon(t, 474828.25, q.Price, 1e-9)
	require.InEpsilon(t, 15266.0, q.Gram24k, 1e-9)
	require.InEpsilon(t, 0.73, q.ChangePercent, 1e-9)
	require.Equal(t, int64(1760860800), q.Timestamp)
}

func TestGetQuote_DerivesMissingGramPrices(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(okResponse(t, map[string]any{"metal": "XAG", "currency": "USD", "price": 82.2}), nil).
		Times(1)

	client := goldapi.New("k", goldapi.WithHTTPClient(httpClient))
	q, err := client.GetQuote(t.Context(), market.Silver, market.USD)
	require.NoError(t, err)
	require.True(t, q.HasGramPrices())
	require.InDelta(t, 82.2/market.TroyOunceGrams, q.Gram24k, 1e-9)
}

func TestGetQuote_RederivesUnorderedGramPrices(t *testing.T) {
	t.Parallel()

	body := map[string]any{"metal": "XAU", "currency": "INR", "price": 474828.25}
	for i, p := range market.Purities {
		body[fmt.Sprintf("price_gram_%dk", p.Karat)] = float64(i + 1)
	}

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(okResponse(t, body), nil).
		Times(1)

	client := goldapi.New("k", goldapi.WithHTTPClient(httpClient))
	q, err := client.GetQuote(t.Context(), market.Gold, market.INR)
	require.NoError(t, err)
	require.True(t, q.GramPricesOrdered())
	require.InDelta(t, 474828.25/market.TroyOunceGrams, q.Gram24k, 1e-9)
	require.InDelta(t, q.Gram24k*0.417, q.Gram10k, 1e-9)
}

func TestGetQuote_ErrMissingKey(t *testing.T) {
	t.Parallel()

	// Arrange: the HTTP client must never be called
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client := goldapi.New("", goldapi.WithHTTPClient(httpClient))
	_, err := client.GetQuote(t.Context(), market.Gold, market.USD)
	require.ErrorIs(t, err, provider.ErrNoCredentials)
}

func TestGetQuote_ErrCreatingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client := goldapi.New("k", goldapi.WithHTTPClient(httpClient))
	_, err := client.GetQuote(t.Context(), market.Gold, market.USD, goldapi.WithBaseURL(string([]rune{0x7f})))
	require.Error(t, err)
}

func TestGetQuote_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, fmt.Errorf("dial tcp: connection refused")).
		Times(1)

	client := goldapi.New("k", goldapi.WithHTTPClient(httpClient))
	_, err := client.GetQuote(t.Context(), market.Gold, market.USD)
	require.ErrorContains(t, err, "performing request")
}

func TestGetQuote_ErrUnexpectedStatusCode(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		status    int
		ratelimit bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	} {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				Return(&http.Response{
					StatusCode: tc.status,
					Body:       io.NopCloser(strings.NewReader(`{"error":"nope"}`)),
				}, nil).
				Times(1)

			client := goldapi.New("k", goldapi.WithHTTPClient(httpClient))
			_, err := client.GetQuote(t.Context(), market.Gold, market.USD)
			require.ErrorIs(t, err, goldapi.ErrUnexpectedStatus)
			require.Equal(t, tc.ratelimit, errors.Is(err, provider.ErrRateLimited))
		})
	}
}

func TestGetQuote_ErrMalformedBody(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":          `<html>maintenance</html>`,
		"missing price":     `{"metal":"XAU","currency":"USD"}`,
		"zero price":        `{"price":0}`,
		"wrong type":        `{"price":"4920.50"}`,
		"metal mismatch":    `{"metal":"XAG","currency":"USD","price":82.2}`,
		"currency mismatch": `{"metal":"XAU","currency":"EUR","price":4400}`,
		"upstream error":    `{"error":"Invalid API key"}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				Return(&http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(strings.NewReader(body)),
				}, nil).
				Times(1)

			client := goldapi.New("k", goldapi.WithHTTPClient(httpClient))
			_, err := client.GetQuote(t.Context(), market.Gold, market.USD)
			require.ErrorIs(t, err, goldapi.ErrMalformedQuote)
		})
	}
}
