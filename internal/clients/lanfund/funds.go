package lanfund

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/bobmcallan/lanfund/internal/models"
)

// GetFundData retrieves the roster with holdings, shares and sectors
func (c *Client) GetFundData(ctx context.Context) (map[string]models.FundRecord, error) {
	funds := make(map[string]models.FundRecord)
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/fund/data"}, &funds); err != nil {
		return nil, err
	}
	return funds, nil
}

type tableResponse struct {
	baseResponse
	HTML  string `json:"html"`
	Total int    `json:"total"`
}

// GetPortfolioRows retrieves the watchlist table for group and parses its rows
func (c *Client) GetPortfolioRows(ctx context.Context, group string) ([]models.FundRow, error) {
	req := request{method: http.MethodGet, path: "/api/portfolio/table"}
	if group != "" {
		req.query = url.Values{"group": []string{group}}
	}

	var resp tableResponse
	if err := c.doEnvelope(ctx, req, &resp); err != nil {
		return nil, err
	}

	rows, err := ParseTableRows(resp.HTML)
	if err != nil {
		return nil, &DecodeError{Endpoint: req.path, Err: err}
	}

	c.logger.Debug().Int("rows", len(rows)).Int("total", resp.Total).Msg("Portfolio table fetched")
	return rows, nil
}

type sharesResponse struct {
	baseResponse
	Shares       *float64 `json:"shares"`
	HoldingUnits *float64 `json:"holding_units"`
	CostPerUnit  *float64 `json:"cost_per_unit"`
}

// sharesFailure is shown when the backend rejects an update without a message.
func sharesFailure(op models.PositionOp) string {
	switch op {
	case models.OpAdd:
		return "加仓失败"
	case models.OpReduce:
		return "减仓失败"
	default:
		return "设置份额失败"
	}
}

// UpdateShares persists a holding change. With RecordOp set the backend also
// records the add/reduce; without it the holding is overwritten.
func (c *Client) UpdateShares(ctx context.Context, update models.SharesUpdate) (*models.SharesResult, error) {
	req, err := jsonRequest(http.MethodPost, "/api/fund/shares", update)
	if err != nil {
		return nil, err
	}

	var resp sharesResponse
	if err := c.doEnvelope(ctx, req, &resp); err != nil {
		if rej, ok := IsRejected(err); ok && strings.TrimSpace(rej.Message) == "" {
			rej.Message = sharesFailure(update.RecordOp)
		}
		return nil, err
	}

	return &models.SharesResult{
		Success:      resp.Success,
		Message:      resp.Message,
		Shares:       resp.Shares,
		HoldingUnits: resp.HoldingUnits,
		CostPerUnit:  resp.CostPerUnit,
	}, nil
}

type recordsResponse struct {
	baseResponse
	Records []models.PositionRecord `json:"records"`
}

// GetPositionRecords lists add/reduce records, newest first
func (c *Client) GetPositionRecords(ctx context.Context) ([]models.PositionRecord, error) {
	var resp recordsResponse
	if err := c.doEnvelope(ctx, request{method: http.MethodGet, path: "/api/fund/position-records"}, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// DeletePositionRecord undoes a record, restoring the previous holding
func (c *Client) DeletePositionRecord(ctx context.Context, id int64) (string, error) {
	var resp baseResponse
	path := fmt.Sprintf("/api/fund/position-records/%d", id)
	if err := c.doEnvelope(ctx, request{method: http.MethodDelete, path: path}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) postMessage(ctx context.Context, path string, payload interface{}) (string, error) {
	req, err := jsonRequest(http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	var resp baseResponse
	if err := c.doEnvelope(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// AddFunds adds fund codes to the roster
func (c *Client) AddFunds(ctx context.Context, codes []string) (string, error) {
	return c.postMessage(ctx, "/api/fund/add", map[string]string{"codes": strings.Join(codes, ",")})
}

// DeleteFunds removes fund codes from the roster
func (c *Client) DeleteFunds(ctx context.Context, codes []string) (string, error) {
	return c.postMessage(ctx, "/api/fund/delete", map[string]string{"codes": strings.Join(codes, ",")})
}

// MarkSectors tags funds with sectors
func (c *Client) MarkSectors(ctx context.Context, codes []string, sectors []string) (string, error) {
	return c.postMessage(ctx, "/api/fund/sector", map[string]interface{}{
		"codes":   strings.Join(codes, ","),
		"sectors": sectors,
	})
}

// UnmarkSectors clears sector tags from funds
func (c *Client) UnmarkSectors(ctx context.Context, codes []string) (string, error) {
	return c.postMessage(ctx, "/api/fund/sector/remove", map[string]string{"codes": strings.Join(codes, ",")})
}

// UploadRoster replaces the roster with a fund_map JSON file. The backend
// reads uploads as GBK, so UTF-8 input is transcoded first.
func (c *Client) UploadRoster(ctx context.Context, filename string, data []byte) (string, error) {
	if !strings.HasSuffix(filename, ".json") {
		filename += ".json"
	}
	if utf8.Valid(data) {
		gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("failed to encode roster as GBK: %w", err)
		}
		data = gbk
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create upload part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload body: %w", err)
	}

	req := request{
		method:      http.MethodPost,
		path:        "/api/fund/upload",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}
	var resp baseResponse
	if err := c.doEnvelope(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// DownloadRoster returns the roster file converted from the backend's GBK to UTF-8
func (c *Client) DownloadRoster(ctx context.Context) ([]byte, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/api/fund/download"})
	if err != nil {
		return nil, err
	}
	// Failures come back as a 200 JSON envelope rather than the file.
	var env baseResponse
	if json.Unmarshal(body, &env) == nil && !env.Success && env.Message != "" {
		return nil, &RejectedError{Endpoint: "/api/fund/download", Message: env.Message}
	}
	if utf8.Valid(body) {
		return body, nil
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return nil, &DecodeError{Endpoint: "/api/fund/download", Err: err}
	}
	return out, nil
}

// BeijingTime returns the backend clock
func (c *Client) BeijingTime(ctx context.Context) (*models.ServerTime, error) {
	var t models.ServerTime
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/time/beijing"}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type dataResponse struct {
	baseResponse
	Data json.RawMessage `json:"data"`
}

// GetMarketData reads a {success, data} market endpoint such as /api/timing
func (c *Client) GetMarketData(ctx context.Context, path string) (json.RawMessage, error) {
	var resp dataResponse
	if err := c.doEnvelope(ctx, request{method: http.MethodGet, path: path}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
