package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/model"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", zerolog.Nop())
	n.BaseURL = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry_RecoversAfterFailures(t *testing.T) {
	var calls int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
		}
	})

	require.NoError(t, n.SendWithRetry(context.Background(), "digest", 3))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	var calls int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := n.SendWithRetry(context.Background(), "digest", 2)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "all 3 retries exhausted"))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestPoll_AnswersCommands(t *testing.T) {
	var replies []string
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			assert.Equal(t, "5", r.URL.Query().Get("offset"))
			w.Write([]byte(`{"ok":true,"result":[
				{"update_id":5,"message":{"text":" /analyze spy "}},
				{"update_id":6},
				{"update_id":7,"message":{"text":"/silent"}}
			]}`))
		case "/botTOKEN/sendMessage":
			var p map[string]string
			json.NewDecoder(r.Body).Decode(&p)
			replies = append(replies, p["text"])
		}
	})

	next, err := n.poll(context.Background(), http.DefaultClient, 5, func(_ context.Context, cmd string) string {
		if cmd == "/silent" {
			return ""
		}
		return "got " + cmd
	})
	require.NoError(t, err)
	assert.Equal(t, 8, next)
	assert.Equal(t, []string{"got /analyze spy"}, replies)
}

func sampleResponse() *model.DeepAnalysisResponse {
	return &model.DeepAnalysisResponse{
		Ticker:                "SPY",
		CurrentPrice:          500,
		CurrentLookbackReturn: 25,
		AvgLookbackReturn:     10,
		Quant:                 model.QuantBlock{CurrentZ: 1.4},
		Simulation: model.SimulationBlock{
			P50:   []float64{500, 510, 550},
			Lower: []float64{500, 480, 450},
			Upper: []float64{500, 540, 650},
		},
		Indicators: model.IndicatorSnapshot{MA200: 470, RSI14: 61, Position52w: 0.9},
	}
}

func TestFormatDigest(t *testing.T) {
	msg := FormatDigest(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		[]*model.DeepAnalysisResponse{sampleResponse()}, []string{"NOPE"})

	assert.True(t, strings.Contains(msg, "2024-05-06"))
	assert.True(t, strings.Contains(msg, "<b>SPY</b> 500.00"))
	assert.True(t, strings.Contains(msg, "Z-score: +1.40 (stretched)"))
	assert.True(t, strings.Contains(msg, "Median in 2d: 550.00 (+10.0%)"))
	assert.True(t, strings.Contains(msg, "Unavailable: NOPE"))
	assert.True(t, strings.Contains(msg, "Signal: "))
}

func TestFormatAnalysis_TakeProfitWarning(t *testing.T) {
	r := sampleResponse()
	r.Indicators.RSI14 = 90
	r.Warnings = []string{"quant: insufficient data"}
	msg := FormatAnalysis(r)
	assert.True(t, strings.Contains(msg, "RSI above 85"))
	assert.True(t, strings.Contains(msg, "1 component(s) degraded"))
}

func TestFormatValuation(t *testing.T) {
	msg := FormatValuation(&model.Valuation{WeightedPE: 31.25, Details: []model.ValuationDetail{
		{Ticker: "AAPL", PE: 30, MarketCap: 3e12},
	}})
	assert.True(t, strings.Contains(msg, "Weighted PE</b>: 31.2"))
	assert.True(t, strings.Contains(msg, "AAPL: PE 30.0, cap 3000B"))
}

func TestZLabel(t *testing.T) {
	assert.Equal(t, "normal", zLabel(0.3))
	assert.Equal(t, "very stretched", zLabel(2.5))
	assert.Equal(t, "depressed", zLabel(-1.2))
	assert.Equal(t, "deeply depressed", zLabel(-2))
}
