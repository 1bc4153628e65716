package rollup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crabrolls/crabrolls/entities"
)

// Client is a thin JSON-over-HTTP wrapper around the host rollup endpoint.
type Client struct {
	*http.Client
	baseURL string
}

// NewClient builds a client for the host rollup endpoint. The generous
// timeout covers the host blocking on finish while no input is available.
func NewClient(baseURL string) *Client {
	return &Client{
		Client:  &http.Client{Timeout: time.Second * 60},
		baseURL: baseURL,
	}
}

func (c *Client) post(route string, request interface{}) (int, []byte, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.Post(fmt.Sprintf("%s/%s", c.baseURL, route), "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// Finish reports the previous cycle's status and asks for the next input.
// A nil response with nil error means no input is available yet (HTTP 202).
func (c *Client) Finish(status entities.FinishStatus) (*entities.FinishResponse, error) {
	code, body, err := c.post("finish", entities.FinishRequest{Status: status.String()})
	if err != nil {
		return nil, err
	}
	switch code {
	case http.StatusOK:
		var finish entities.FinishResponse
		if err := json.Unmarshal(body, &finish); err != nil {
			return nil, fmt.Errorf("rollup: malformed finish response: %w", err)
		}
		return &finish, nil
	case http.StatusAccepted:
		return nil, nil
	default:
		return nil, fmt.Errorf("rollup: finish returned status %d", code)
	}
}

func (c *Client) emit(route string, request interface{}) (int, error) {
	code, body, err := c.post(route, request)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK && code != http.StatusCreated {
		return 0, fmt.Errorf("rollup: %s returned status %d", route, code)
	}
	var index entities.IndexResponse
	if err := json.Unmarshal(body, &index); err != nil {
		return 0, fmt.Errorf("rollup: malformed %s response: %w", route, err)
	}
	return index.Index, nil
}

// AddNotice records a notice on the host and returns its index.
func (c *Client) AddNotice(payload []byte) (int, error) {
	return c.emit("notice", entities.NoticeRequest{Payload: payload})
}

// AddReport records a report on the host and returns its index.
func (c *Client) AddReport(payload []byte) (int, error) {
	return c.emit("report", entities.ReportRequest{Payload: payload})
}

// AddVoucher records a voucher on the host and returns its index.
func (c *Client) AddVoucher(destination common.Address, payload []byte) (int, error) {
	return c.emit("voucher", entities.VoucherRequest{Destination: destination, Payload: payload})
}
