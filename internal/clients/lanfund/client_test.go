package lanfund

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/bobmcallan/lanfund/internal/models"
)

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{WithBaseURL(srv.URL), WithRateLimit(1000)}, opts...)
	return NewClient(opts...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGetFundData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"000001": map[string]interface{}{"fund_name": "华夏成长", "shares": 200, "sectors": []string{"科技"}, "holding_units": 100, "cost_per_unit": 2},
			"000002": map[string]interface{}{"fund_name": "Legacy", "shares": 50},
		})
	})
	c := newTestClient(t, mux)

	funds, err := c.GetFundData(context.Background())
	require.NoError(t, err)
	require.Len(t, funds, 2)

	h, ok := funds["000001"].Holding()
	require.True(t, ok)
	assert.Equal(t, models.FundHolding{HoldingUnits: 100, CostPerUnit: 2}, h)
	assert.Equal(t, []string{"科技"}, funds["000001"].Sectors)

	_, ok = funds["000002"].Holding()
	assert.False(t, ok)
	assert.Equal(t, 50.0, funds["000002"].Shares)
}

func TestGetPortfolioRows(t *testing.T) {
	rowsHTML := `<tr data-code="000001" data-holding="1"><td>000001</td><td>华夏成长<span class="tag">科技</span></td><td>14:30</td><td>1.2345(03-04)</td><td>+1.20%</td><td>-0.35%</td><td>涨2天</td><td>5.1%</td><td><button>修改</button></td></tr>` +
		`<tr><td colspan="10">加载中...</td></tr>` +
		`<tr data-code="000002"><td>000002</td><td>B &amp; Co</td><td>14:30</td><td>N/A</td><td>N/A</td><td>N/A</td><td>-</td><td>-</td></tr>`

	var gotGroup string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/portfolio/table", func(w http.ResponseWriter, r *http.Request) {
		gotGroup = r.URL.Query().Get("group")
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "html": rowsHTML, "total": 2})
	})
	c := newTestClient(t, mux)

	rows, err := c.GetPortfolioRows(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", gotGroup)
	require.Len(t, rows, 2)

	assert.Equal(t, "000001", rows[0].Code)
	assert.Equal(t, "华夏成长科技", rows[0].Name)
	assert.Equal(t, "1.2345(03-04)", rows[0].NetValueText)
	assert.Equal(t, "+1.20%", rows[0].EstimatedGrowthText)
	assert.Equal(t, "-0.35%", rows[0].DayGrowthText)
	assert.Equal(t, "5.1%", rows[0].Month30Text)
	assert.Equal(t, "B & Co", rows[1].Name)
}

func TestUpdateShares_Success(t *testing.T) {
	var body models.SharesUpdate
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/shares", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true, "message": "已更新持仓金额", "shares": 500, "holding_units": 220, "cost_per_unit": 2.2727,
		})
	})
	c := newTestClient(t, mux)

	units, cost, amount := 220.0, 2.2727, 300.0
	res, err := c.UpdateShares(context.Background(), models.SharesUpdate{
		Code: "000001", HoldingUnits: &units, CostPerUnit: &cost,
		RecordOp: models.OpAdd, Amount: &amount, TradeDate: "2024-01-10", Period: models.PeriodBefore15,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.HoldingUnits)
	assert.Equal(t, 220.0, *res.HoldingUnits)
	require.NotNil(t, res.Shares)
	assert.Equal(t, 500.0, *res.Shares)
	assert.Equal(t, "已更新持仓金额", res.Message)

	assert.Equal(t, "000001", body.Code)
	assert.Equal(t, models.OpAdd, body.RecordOp)
	require.NotNil(t, body.Amount)
	assert.Equal(t, 300.0, *body.Amount)
	assert.Equal(t, models.PeriodBefore15, body.Period)
}

func TestUpdateShares_Rejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/shares", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "更新失败，基金不存在"})
	})
	c := newTestClient(t, mux)

	_, err := c.UpdateShares(context.Background(), models.SharesUpdate{Code: "999999"})
	require.Error(t, err)

	rej, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, "更新失败，基金不存在", rej.Message)
	assert.Equal(t, "更新失败，基金不存在", err.Error())
}

func TestUpdateShares_RejectedWithoutMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/shares", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	tests := []struct {
		op   models.PositionOp
		want string
	}{
		{models.OpAdd, "加仓失败"},
		{models.OpReduce, "减仓失败"},
		{"", "设置份额失败"},
	}
	for _, tt := range tests {
		_, err := c.UpdateShares(ctx, models.SharesUpdate{Code: "000001", RecordOp: tt.op})
		rej, ok := IsRejected(err)
		require.True(t, ok)
		assert.Equal(t, tt.want, rej.Message)
		assert.Equal(t, tt.want, err.Error())
	}
}

func TestRejectedError_EmptyMessage(t *testing.T) {
	err := &RejectedError{Endpoint: "/api/fund/add"}
	assert.Equal(t, "request rejected by backend (endpoint: /api/fund/add)", err.Error())
}

func TestResponseError_TruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("失", 100) // 300 bytes
	err := responseError(http.StatusBadGateway, "/api/fund/data", []byte(body))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, utf8.ValidString(apiErr.Message))
	assert.LessOrEqual(t, len(apiErr.Message), maxErrorMessage)
	assert.Equal(t, strings.Repeat("失", 85), apiErr.Message)
}

func TestErrors_NonJSONAndBadJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/data", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	})
	mux.HandleFunc("/api/time/beijing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})
	mux.HandleFunc("/api/fund/position-records", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "message": "db locked"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.GetFundData(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "gateway exploded")

	_, err = c.BeijingTime(ctx)
	var decErr *DecodeError
	assert.True(t, errors.As(err, &decErr))

	_, err = c.GetPositionRecords(ctx)
	rej, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, rej.StatusCode)
	assert.Equal(t, "db locked", rej.Message)
}

func TestLazyLoginOn401(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "lan" || r.PostForm.Get("password") != "pw" {
			w.Write([]byte("<html>login</html>"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/api/fund/data", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err != nil || ck.Value != "ok" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "请先登录"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	})

	c := newTestClient(t, mux, WithCredentials("lan", "pw"))
	_, err := c.GetFundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))

	// Session cookie is reused.
	_, err = c.GetFundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestLogin_BadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>用户名或密码错误</html>"))
	})
	c := newTestClient(t, mux, WithCredentials("lan", "wrong"))

	err := c.Login(context.Background())
	_, ok := IsRejected(err)
	assert.True(t, ok)
}

func TestUnauthorizedWithoutCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "请先登录"})
	})
	c := newTestClient(t, mux)

	_, err := c.GetFundData(context.Background())
	rej, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, "请先登录", rej.Message)
}

func TestPositionRecordsAndUndo(t *testing.T) {
	var deletedPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/position-records", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"records": []map[string]interface{}{
				{"id": 12, "fund_code": "000001", "op": "add", "amount": 300, "trade_date": "2024-01-10", "period": "after15", "can_undo": true},
			},
		})
	})
	mux.HandleFunc("/api/fund/position-records/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deletedPath = r.URL.Path
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "已撤销"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	recs, err := c.GetPositionRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(12), recs[0].ID)
	assert.Equal(t, models.PeriodAfter15, recs[0].Period)

	msg, err := c.DeletePositionRecord(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "已撤销", msg)
	assert.Equal(t, "/api/fund/position-records/12", deletedPath)
}

func TestRosterCalls(t *testing.T) {
	bodies := map[string]map[string]interface{}{}
	mux := http.NewServeMux()
	for _, p := range []string{"/api/fund/add", "/api/fund/delete", "/api/fund/sector", "/api/fund/sector/remove"} {
		path := p
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			bodies[path] = body
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "ok " + path})
		})
	}
	c := newTestClient(t, mux)
	ctx := context.Background()

	msg, err := c.AddFunds(ctx, []string{"000001", "000002"})
	require.NoError(t, err)
	assert.Equal(t, "ok /api/fund/add", msg)
	assert.Equal(t, "000001,000002", bodies["/api/fund/add"]["codes"])

	_, err = c.DeleteFunds(ctx, []string{"000003"})
	require.NoError(t, err)
	assert.Equal(t, "000003", bodies["/api/fund/delete"]["codes"])

	_, err = c.MarkSectors(ctx, []string{"000001"}, []string{"科技", "医药"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"科技", "医药"}, bodies["/api/fund/sector"]["sectors"])

	_, err = c.UnmarkSectors(ctx, []string{"000001"})
	require.NoError(t, err)
	assert.Equal(t, "000001", bodies["/api/fund/sector/remove"]["codes"])
}

func TestUploadRoster_TranscodesToGBK(t *testing.T) {
	roster := `{"000001":{"fund_key":"k","fund_name":"华夏成长"}}`
	var received string
	var filename string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		filename = hdr.Filename
		raw, _ := io.ReadAll(f)
		utf, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
		require.NoError(t, err)
		received = string(utf)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "成功导入1个基金"})
	})
	c := newTestClient(t, mux)

	msg, err := c.UploadRoster(context.Background(), "fund_map", []byte(roster))
	require.NoError(t, err)
	assert.Equal(t, "成功导入1个基金", msg)
	assert.Equal(t, "fund_map.json", filename)
	assert.Equal(t, roster, received)
}

func TestDownloadRoster_DecodesGBK(t *testing.T) {
	roster := `{"000001": {"fund_name": "华夏成长"}}`
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(roster))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/fund/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(gbk)
	})
	c := newTestClient(t, mux)

	data, err := c.DownloadRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, roster, string(data))
}

func TestGetMarketDataAndTime(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/timing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]interface{}{"current_price": 3050.2}})
	})
	mux.HandleFunc("/api/time/beijing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"date": "2024-01-10", "time": "15:20:00", "hour": 15, "minute": 20})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	data, err := c.GetMarketData(ctx, "/api/timing")
	require.NoError(t, err)
	assert.JSONEq(t, `{"current_price":3050.2}`, string(data))

	now, err := c.BeijingTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", now.Date)
	assert.Equal(t, models.PeriodAfter15, now.DefaultPeriod())
}

func TestParseTableRows_Empty(t *testing.T) {
	rows, err := ParseTableRows("")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
