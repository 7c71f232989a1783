package natives

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper/heap"
	"github.com/viper-lang/viper/interp"
	"github.com/viper-lang/viper/vm"
	"golang.org/x/net/http/httpguts"
)

const (
	TagRequest  heap.TypeTag = "net.Request"
	TagResponse heap.TypeTag = "net.Response"

	DefaultTimeout = 30 * time.Second

	requestHint = "check your request."
)

// Request is an unsent HTTP request. Builders never mutate a request; each
// one allocates a new handle.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

func (r *Request) Size() int {
	return len(r.URL) + len(r.Body)
}

func (r *Request) with() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c
}

// Response is a completed exchange with the body read in full.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) Size() int {
	return len(r.Body)
}

type netLib struct {
	client *http.Client
}

// ProvideNet registers the net@ natives. Requests go through client, or a
// client with DefaultTimeout when client is nil.
func ProvideNet(m *interp.VM, addr vm.Address, client *http.Client) error {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	lib := &netLib{client: client}
	return provideEach(m, addr, []entry{
		{"net@get", 1, lib.request(http.MethodGet)},
		{"net@post", 1, lib.request(http.MethodPost)},
		{"net@put", 1, lib.request(http.MethodPut)},
		{"net@delete", 1, lib.request(http.MethodDelete)},
		{"net@patch", 1, lib.request(http.MethodPatch)},
		{"net@options", 1, lib.request(http.MethodOptions)},
		{"net@head", 1, lib.request(http.MethodHead)},
		{"net@header", 3, lib.header},
		{"net@body", 2, lib.body},
		{"net@send", 1, lib.send},
		{"net@response_status", 1, lib.responseStatus},
		{"net@response_headers", 1, lib.responseHeaders},
		{"net@response_utf8", 1, lib.responseUTF8},
		{"net@response_bytes", 1, lib.responseBytes},
	})
}

func popRequest(m *interp.VM, addr vm.Address) (*Request, error) {
	v, err := m.Pop()
	if err != nil {
		return nil, err
	}
	return interp.Object[*Request](m, addr, v, TagRequest)
}

func popResponse(m *interp.VM, addr vm.Address) (*Response, error) {
	v, err := m.Pop()
	if err != nil {
		return nil, err
	}
	return interp.Object[*Response](m, addr, v, TagResponse)
}

func (l *netLib) request(method string) interp.NativeFunc {
	return func(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
		url, err := m.PopString(addr)
		if err != nil {
			return interp.Raise(err)
		}
		req := &Request{Method: method, URL: url, Header: make(http.Header)}
		return m.PushIf(push, m.Alloc(TagRequest, req))
	}
}

func (l *netLib) header(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
	value, err := m.PopString(addr)
	if err != nil {
		return interp.Raise(err)
	}
	key, err := m.PopString(addr)
	if err != nil {
		return interp.Raise(err)
	}
	req, err := popRequest(m, addr)
	if err != nil {
		return interp.Raise(err)
	}
	if !httpguts.ValidHeaderFieldName(key) {
		return interp.Raise(vm.Errorf(vm.Native, addr, "invalid header name %q", key).WithHint(requestHint))
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return interp.Raise(vm.Errorf(vm.Native, addr, "invalid value for header %s", key).WithHint(requestHint))
	}
	next := req.with()
	next.Header.Add(key, value)
	return m.PushIf(push, m.Alloc(TagRequest, next))
}

func (l *netLib) body(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
	data, err := m.PopString(addr)
	if err != nil {
		return interp.Raise(err)
	}
	req, err := popRequest(m, addr)
	if err != nil {
		return interp.Raise(err)
	}
	next := req.with()
	next.Body = data
	return m.PushIf(push, m.Alloc(TagRequest, next))
}

// send performs the request even when the result is discarded, and a failed
// exchange is raised either way.
func (l *netLib) send(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
	req, err := popRequest(m, addr)
	if err != nil {
		return interp.Raise(err)
	}
	resp, err := l.do(req)
	if err != nil {
		return interp.Raise(vm.Errorf(vm.Native, addr, "failed the request: %v", err).WithHint(requestHint))
	}
	return m.PushIf(push, m.Alloc(TagResponse, resp))
}

func (l *netLib) do(req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(context.Background(), req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Header.Clone()

	start := time.Now()
	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("bytes", buf.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("net: request sent")
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: buf.Bytes()}, nil
}

func (l *netLib) responseStatus(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
	resp, err := popResponse(m, addr)
	if err != nil {
		return interp.Raise(err)
	}
	return m.PushIf(push, vm.IntValue(resp.Status))
}

// responseHeaders renders the headers as a JSON object. Repeated headers are
// joined with ", ".
func (l *netLib) responseHeaders(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
	resp, err := popResponse(m, addr)
	if err != nil {
		return interp.Raise(err)
	}
	flat := make(map[string]string, len(resp.Header))
	for k, vs := range resp.Header {
		flat[k] = strings.Join(vs, ", ")
	}
	out, err := json.Marshal(flat)
	if err != nil {
		return interp.Raise(vm.InternalError(addr, "encoding response headers: %v", err))
	}
	return m.PushIf(push, vm.StrValue(out))
}

func (l *netLib) responseUTF8(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
	resp, err := popResponse(m, addr)
	if err != nil {
		return interp.Raise(err)
	}
	if !utf8.Valid(resp.Body) {
		return interp.Raise(vm.Errorf(vm.Native, addr, "failed response decoding as utf-8").WithHint(requestHint))
	}
	return m.PushIf(push, vm.StrValue(resp.Body))
}

func (l *netLib) responseBytes(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
	resp, err := popResponse(m, addr)
	if err != nil {
		return interp.Raise(err)
	}
	if !push {
		return interp.Normal()
	}
	return m.PushIf(push, m.Alloc(heap.TagBytes, heap.Bytes(bytes.Clone(resp.Body))))
}
