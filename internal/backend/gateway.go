package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kong/rosterctl/internal/datatable"
	"github.com/tidwall/gjson"
)

// Names probed in a bulk reply.
var (
	updatedKeys    = []string{"updated", "updatedRecords", "updated_records", "updatedUsers"}
	failedKeys     = []string{"failed", "failures", "errors"}
	failureIDKeys  = []string{"id", "userId", "employeeId", "candidateId", "email"}
	failureMsgKeys = []string{"error", "reason", "message"}
)

// Gateway posts bulk actions to one endpoint.
type Gateway struct {
	client *Client
	path   string
	logger *slog.Logger
}

// NewGateway returns a bulk action gateway for the endpoint at path.
func (c *Client) NewGateway(path string) *Gateway {
	return &Gateway{client: c, path: path, logger: c.logger.With(slog.String("path", path))}
}

// Execute posts {"ids": [...]} merged with the fields of payload. A payload
// that is not a JSON object is sent under "payload".
func (g *Gateway) Execute(ctx context.Context, ids []datatable.ID, payload any) (datatable.BulkResponse, error) {
	body, err := bulkBody(ids, payload)
	if err != nil {
		return datatable.BulkResponse{}, err
	}
	raw, err := g.client.do(ctx, http.MethodPost, g.path, nil, body)
	if err != nil {
		return datatable.BulkResponse{}, err
	}
	resp, err := DecodeBulkResponse(raw)
	if err != nil {
		return datatable.BulkResponse{}, fmt.Errorf("%s %s: %w", http.MethodPost, g.path, err)
	}
	g.logger.Debug("bulk action replied",
		slog.Int("requested", len(ids)),
		slog.Bool("has_updated", resp.Updated != nil),
		slog.Int("failed", len(resp.Failed)))
	return resp, nil
}

func bulkBody(ids []datatable.ID, payload any) (map[string]any, error) {
	body := map[string]any{}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		var fields map[string]any
		if json.Unmarshal(b, &fields) == nil && fields != nil {
			body = fields
		} else {
			body["payload"] = json.RawMessage(b)
		}
	}
	body["ids"] = ids
	return body, nil
}

// DecodeBulkResponse reads a bulk reply. A bare array is the updated list;
// an object without any updated key leaves Updated nil.
func DecodeBulkResponse(raw []byte) (datatable.BulkResponse, error) {
	var resp datatable.BulkResponse
	if len(raw) == 0 {
		return resp, nil
	}
	if !gjson.ValidBytes(raw) {
		return resp, fmt.Errorf("bulk reply is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if root.IsArray() {
		rows, err := toRows(root)
		if err != nil {
			return resp, err
		}
		resp.Updated = rows
		return resp, nil
	}
	if !root.IsObject() {
		return resp, fmt.Errorf("unexpected bulk reply %s", root.Type)
	}
	if list, ok := firstArray(root, updatedKeys); ok {
		rows, err := toRows(list)
		if err != nil {
			return resp, fmt.Errorf("updated: %w", err)
		}
		resp.Updated = rows
	}
	if list, ok := firstArray(root, failedKeys); ok {
		for _, item := range list.Array() {
			resp.Failed = append(resp.Failed, toFailure(item))
		}
	}
	return resp, nil
}

func toFailure(item gjson.Result) datatable.FailureRecord {
	if !item.IsObject() {
		id, _ := datatable.ToID(item.Value())
		return datatable.FailureRecord{ID: id, Error: "unknown error"}
	}
	var rec datatable.FailureRecord
	for _, k := range failureIDKeys {
		if id, ok := datatable.ToID(item.Get(gjson.Escape(k)).Value()); ok {
			rec.ID = id
			break
		}
	}
	for _, k := range failureMsgKeys {
		if r := item.Get(gjson.Escape(k)); r.Exists() && r.String() != "" {
			rec.Error = r.String()
			break
		}
	}
	if rec.Error == "" {
		rec.Error = "unknown error"
	}
	return rec
}
