package stdlib

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kristofer/corevm/internal/vm"
)

// RegisterIO binds the HTTP/compression primitives: httpGet, httpPost,
// gzipPack, gzipUnpack, zipPack — rehomed from smog's HTTP and
// compression sections of pkg/vm/primitives.go.
func RegisterIO(t *vm.Thread) error {
	client := &http.Client{Timeout: 30 * time.Second}

	regs := []struct {
		name string
		args uint32
		fn   func(*vm.Thread, vm.CallContextArgs)
	}{
		{"httpGet", 1, httpGet(client)},
		{"httpPost", 2, httpPost(client)},
		{"gzipPack", 1, gzipPack},
		{"gzipUnpack", 1, gzipUnpack},
		{"zipPack", 1, zipPack},
	}
	for _, r := range regs {
		fn := r.fn
		if err := t.RegisterExternFunction(r.name, r.args, vm.Bridge(t, fn)); err != nil {
			return fmt.Errorf("registering %s: %w", r.name, err)
		}
	}
	return nil
}

func httpGet(client *http.Client) func(*vm.Thread, vm.CallContextArgs) {
	return func(t *vm.Thread, a vm.CallContextArgs) {
		url, err := a.OneString()
		if err != nil {
			a.Fail(err)
			return
		}
		resp, err := client.Get(url)
		if err != nil {
			a.Fail(fmt.Errorf("HTTP GET failed: %w", err))
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			a.Fail(fmt.Errorf("failed to read response body: %w", err))
			return
		}
		a.OkString(string(body))
	}
}

func httpPost(client *http.Client) func(*vm.Thread, vm.CallContextArgs) {
	return func(t *vm.Thread, a vm.CallContextArgs) {
		url, body, err := a.TwoStrings()
		if err != nil {
			a.Fail(err)
			return
		}
		resp, err := client.Post(url, "text/plain", strings.NewReader(body))
		if err != nil {
			a.Fail(fmt.Errorf("HTTP POST failed: %w", err))
			return
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			a.Fail(fmt.Errorf("failed to read response body: %w", err))
			return
		}
		a.OkString(string(respBody))
	}
}

// gzipPack compresses its single string argument, returning raw gzip
// bytes reinterpreted as a string (the bridge's "bytes" convention —
// strings carry arbitrary byte sequences, not just UTF-8 text, matching
// smog's own treatment of binary blobs as Go strings).
func gzipPack(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(s)); err != nil {
		a.Fail(fmt.Errorf("gzip write failed: %w", err))
		return
	}
	if err := gw.Close(); err != nil {
		a.Fail(fmt.Errorf("gzip close failed: %w", err))
		return
	}
	a.OkString(buf.String())
}

func gzipUnpack(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	gr, err := gzip.NewReader(strings.NewReader(s))
	if err != nil {
		a.Fail(fmt.Errorf("gzip reader init failed: %w", err))
		return
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		a.Fail(fmt.Errorf("gzip read failed: %w", err))
		return
	}
	a.OkString(string(out))
}

// zipPack wraps its single string argument as the sole entry ("data") of
// a zip archive, returned as a string of raw archive bytes.
func zipPack(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("data")
	if err != nil {
		a.Fail(fmt.Errorf("zip create failed: %w", err))
		return
	}
	if _, err := w.Write([]byte(s)); err != nil {
		a.Fail(fmt.Errorf("zip write failed: %w", err))
		return
	}
	if err := zw.Close(); err != nil {
		a.Fail(fmt.Errorf("zip close failed: %w", err))
		return
	}
	a.OkString(buf.String())
}
