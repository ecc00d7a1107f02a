// Copyright 2024 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func checkURL(t *testing.T, srv *Server, path, response string, status int) {
	url := "http://" + srv.Address() + path

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, status, res.StatusCode, "status of %s", url)
	txt, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, response, string(txt), "response of %s", url)
}

type testHandler struct {
	response string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(h.response))
}

func TestStartShutdown(t *testing.T) {
	srv := NewServer()
	require.NoError(t, srv.Start("127.0.0.1:0"))
	require.NotEmpty(t, srv.Address())
	require.Error(t, srv.Start("127.0.0.1:0"))

	require.NoError(t, srv.Shutdown(context.Background()))
	require.Empty(t, srv.Address())
	require.NoError(t, srv.Shutdown(context.Background()))

	require.NoError(t, srv.Start("127.0.0.1:0"))
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestPatterns(t *testing.T) {
	srv := NewServer()
	mux := srv.Mux()
	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Shutdown(context.Background())

	require.NoError(t, mux.Handle("/a", &testHandler{"a"}))
	checkURL(t, srv, "/a", "a", 200)
	require.Error(t, mux.Handle("/a", &testHandler{"again"}))

	require.NoError(t, mux.Handle("/", &testHandler{"/"}))
	checkURL(t, srv, "/b", "/", 200)

	_, ok := mux.Unregister("/a")
	require.True(t, ok)
	checkURL(t, srv, "/a", "/", 200)
	_, ok = mux.Unregister("/a")
	require.False(t, ok)
}
