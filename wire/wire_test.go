package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		{Op: OpFind, Key: 0x1000},
		{Op: OpPing, Key: 0},
		{Op: OpGet, Key: 0x2a},
		{Op: OpPut, Key: 0x2a, Value: []byte("hi")},
		{Op: OpAccept, Key: 0x55, Value: []byte("4322")},
	}
	for _, req := range cases {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		if err := WriteRequest(w, req); err != nil {
			t.Fatalf("WriteRequest(%+v): %v", req, err)
		}
		got, err := ReadRequest(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("ReadRequest after %+v: %v", req, err)
		}
		if got.Op != req.Op || got.Key != req.Key || !bytes.Equal(got.Value, req.Value) {
			t.Errorf("round trip %+v got %+v", req, got)
		}
	}
}

func TestPutRequestFraming(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteRequest(w, Request{Op: OpPut, Key: 0x15555555, Value: []byte("hi")}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "put 15555555\n2\nhi"; got != want {
		t.Errorf("framing = %q, want %q", got, want)
	}
}

func roundTripResponse(t *testing.T, resp Response) Response {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteResponse(w, resp); err != nil {
		t.Fatalf("WriteResponse(%+v): %v", resp, err)
	}
	got, err := ReadResponse(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadResponse after %+v: %v", resp, err)
	}
	return got
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		MeResponse{ID: 0x1000},
		PeerResponse{ID: 0x2000, Locator: "10.0.0.1:4322"},
		NoneResponse{},
		ValueResponse{Data: []byte("hi")},
		OkResponse{},
		PongResponse{},
		UnknownResponse{},
		ChainResponse{Entries: []*PeerResponse{
			{ID: 1, Locator: "a:1"},
			nil,
			{ID: 2, Locator: "b:2"},
		}},
	}
	for _, resp := range cases {
		got := roundTripResponse(t, resp)
		assertResponseEqual(t, resp, got)
	}
}

func assertResponseEqual(t *testing.T, want, got Response) {
	t.Helper()
	switch w := want.(type) {
	case MeResponse:
		g, ok := got.(MeResponse)
		if !ok || g != w {
			t.Errorf("got %#v, want %#v", got, want)
		}
	case PeerResponse:
		g, ok := got.(PeerResponse)
		if !ok || g != w {
			t.Errorf("got %#v, want %#v", got, want)
		}
	case NoneResponse:
		if _, ok := got.(NoneResponse); !ok {
			t.Errorf("got %#v, want NoneResponse", got)
		}
	case ValueResponse:
		g, ok := got.(ValueResponse)
		if !ok || string(g.Data) != string(w.Data) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	case OkResponse:
		if _, ok := got.(OkResponse); !ok {
			t.Errorf("got %#v, want OkResponse", got)
		}
	case PongResponse:
		if _, ok := got.(PongResponse); !ok {
			t.Errorf("got %#v, want PongResponse", got)
		}
	case UnknownResponse:
		if _, ok := got.(UnknownResponse); !ok {
			t.Errorf("got %#v, want UnknownResponse", got)
		}
	case ChainResponse:
		g, ok := got.(ChainResponse)
		if !ok || len(g.Entries) != len(w.Entries) {
			t.Fatalf("got %#v, want %#v", got, want)
		}
		for i := range w.Entries {
			we, ge := w.Entries[i], g.Entries[i]
			if (we == nil) != (ge == nil) {
				t.Errorf("entry %d: got %#v, want %#v", i, ge, we)
				continue
			}
			if we != nil && *we != *ge {
				t.Errorf("entry %d: got %#v, want %#v", i, ge, we)
			}
		}
	default:
		t.Fatalf("unhandled response type %T", want)
	}
}

func TestNormalizeLocator(t *testing.T) {
	if got := NormalizeLocator("10.0.0.1"); got != "10.0.0.1:4321" {
		t.Errorf("NormalizeLocator without port = %q", got)
	}
	if got := NormalizeLocator("10.0.0.1:9"); got != "10.0.0.1:9" {
		t.Errorf("NormalizeLocator with port = %q", got)
	}
}
