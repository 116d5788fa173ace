// Package client is a typed HTTP client for the clinicbook API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"clinicbook/internal/api"
	"clinicbook/internal/booking"
	"clinicbook/internal/model"
	"clinicbook/internal/tz"
)

const (
	apiKeyHeader   = "X-Api-Key"
	adminKeyHeader = "X-Admin-Key"
	cachePrefix    = "clinicbook:client:"
)

// APIError is a non-2xx reply. It unwraps to the matching domain error so
// callers can use errors.Is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Reason     string
	Closure    *api.ClosureView
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "no_deposit":
		return model.ErrNoDeposit
	case "slot_unavailable":
		return model.ErrSlotUnavailable
	case "clinic_closed":
		return model.ErrClinicClosed
	case "invalid_timezone":
		return tz.ErrInvalidTimezone
	case "invalid_request":
		return model.ErrInvalidInput
	case "not_found":
		return model.ErrNotFound
	case "invalid_transition":
		return model.ErrInvalidTransition
	case "payment_conflict":
		return model.ErrPaymentConflict
	case "temporarily_unavailable":
		return model.ErrTransient
	}
	return nil
}

// Client calls the clinicbook API.
type Client struct {
	baseURL    string
	apiKey     string
	adminKey   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAdminKey sets the key sent to admin routes and the payment callback.
func (c *Client) WithAdminKey(key string) *Client {
	c.adminKey = key
	return c
}

// UseRedisCache caches responses that do not depend on bookings: the doctor
// list and time conversions.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// Doctors lists active doctors.
func (c *Client) Doctors(ctx context.Context) ([]model.Doctor, error) {
	var doctors []model.Doctor
	if c.readCache(ctx, "doctors", &doctors) {
		return doctors, nil
	}
	if err := c.doGet(ctx, "/api/doctors", nil, false, &doctors); err != nil {
		return nil, err
	}
	c.writeCache(ctx, "doctors", doctors)
	return doctors, nil
}

// SlotsQuery selects the slots to resolve.
type SlotsQuery struct {
	DoctorID int64
	Date     string
	// ClientTimezone adds client-zone times to every slot when set.
	ClientTimezone string
	// Lock previews the listing under another lock policy when non-nil. It
	// needs the admin key.
	Lock *bool
	Lang string
}

// Slots resolves the slots of a doctor on a date.
func (c *Client) Slots(ctx context.Context, q SlotsQuery) (*api.SlotsResponse, error) {
	params := url.Values{"date": {q.Date}}
	if q.ClientTimezone != "" {
		params.Set("tz", q.ClientTimezone)
	}
	path, admin := fmt.Sprintf("/api/doctors/%d/slots", q.DoctorID), false
	if q.Lock != nil {
		params.Set("lock", strconv.FormatBool(*q.Lock))
		path, admin = fmt.Sprintf("/api/admin/doctors/%d/slots", q.DoctorID), true
	}
	if q.Lang != "" {
		params.Set("lang", q.Lang)
	}

	var resp api.SlotsResponse
	if err := c.doGet(ctx, path, params, admin, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Closure reports the closure in effect for a doctor on a date.
func (c *Client) Closure(ctx context.Context, doctorID int64, date, lang string) (*api.ClosureResponse, error) {
	params := url.Values{"date": {date}}
	if lang != "" {
		params.Set("lang", lang)
	}
	var resp api.ClosureResponse
	if err := c.doGet(ctx, fmt.Sprintf("/api/doctors/%d/closure", doctorID), params, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BookWithDeposit redeems one deposit session for a slot.
func (c *Client) BookWithDeposit(ctx context.Context, req booking.Request) (*model.Appointment, error) {
	var appt model.Appointment
	if err := c.doJSON(ctx, http.MethodPost, "/api/bookings/deposit", req, false, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// Deposits lists the balances of a customer.
func (c *Client) Deposits(ctx context.Context, customerID string) ([]model.SessionDeposit, error) {
	var deposits []model.SessionDeposit
	if err := c.doGet(ctx, "/api/deposits", url.Values{"customer_id": {customerID}}, false, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// IncreaseDeposit reports a completed payment. Requires the admin key.
func (c *Client) IncreaseDeposit(ctx context.Context, req api.IncreaseDepositRequest) (*model.SessionDeposit, error) {
	var deposit model.SessionDeposit
	if err := c.doJSON(ctx, http.MethodPost, "/api/deposits", req, true, &deposit); err != nil {
		return nil, err
	}
	return &deposit, nil
}

// Convert translates a wall-clock date and time between zones.
func (c *Client) Convert(ctx context.Context, date, clock, from, to string) (*api.ConvertResponse, error) {
	key := fmt.Sprintf("convert:%s:%s:%s:%s", date, clock, from, to)
	var resp api.ConvertResponse
	if c.readCache(ctx, key, &resp) {
		return &resp, nil
	}

	params := url.Values{"date": {date}, "time": {clock}, "from": {from}, "to": {to}}
	if err := c.doGet(ctx, "/api/time/convert", params, false, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, resp)
	return &resp, nil
}

// CancelAppointment deletes an appointment. Requires the admin key.
func (c *Client) CancelAppointment(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/admin/appointments/%d", id), nil, true, nil)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cachePrefix+key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cachePrefix+key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, admin bool, out any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, path, nil, admin, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, admin bool, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	if admin && c.adminKey != "" {
		req.Header.Set(adminKeyHeader, c.adminKey)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("http %d: decode error body: %w", resp.StatusCode, err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       body.Code,
			Message:    body.Error,
			Reason:     body.Reason,
			Closure:    body.Closure,
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
