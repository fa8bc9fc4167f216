package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession simulates the session-open endpoint plus the one-time
// upload URL, recording every Content-Range it receives.
type fakeSession struct {
	t      *testing.T
	total  int64
	ranges []string
	bytes  int64

	opens int

	// finalBody overrides the final item JSON when non-empty.
	finalBody string
	// chunkStatus, when non-zero, is returned for every chunk PUT.
	chunkStatus int
	// neverComplete keeps answering 202 even for the last chunk.
	neverComplete bool
}

func (f *fakeSession) server() *httptest.Server {
	mux := http.NewServeMux()

	var srv *httptest.Server

	mux.HandleFunc("/drives/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		require.True(f.t, strings.HasSuffix(r.URL.Path, ":/createUploadSession"))

		f.opens++

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"uploadUrl":%q}`, srv.URL+"/upload-session/one-time")
	})

	mux.HandleFunc("/upload-session/one-time", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)

		cr := r.Header.Get("Content-Range")
		f.ranges = append(f.ranges, cr)
		f.bytes += int64(len(body))

		assert.Equal(f.t, int64(len(body)), r.ContentLength)

		if f.chunkStatus != 0 {
			w.WriteHeader(f.chunkStatus)
			fmt.Fprint(w, `{"error":{"code":"uploadFailed"}}`)
			return
		}

		var start, end, total int64
		_, err = fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total)
		require.NoError(f.t, err)
		assert.Equal(f.t, f.total, total)

		if end == total-1 && !f.neverComplete {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)

			if f.finalBody != "" {
				fmt.Fprint(w, f.finalBody)
				return
			}

			fmt.Fprintf(w, `{"id":"item-1","name":"final.mp4","webUrl":"https://contoso.sharepoint.com/f/final.mp4","size":%d,"file":{"mimeType":"video/mp4"}}`, total)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"nextExpectedRanges":["x"]}`)
	})

	srv = httptest.NewServer(mux)

	return srv
}

func TestUpload_ChunkRanges(t *testing.T) {
	// Exact 25 MiB source with 10 MiB chunks: three PUTs.
	const total = 25 * 1024 * 1024

	session := &fakeSession{t: t, total: total}
	srv := session.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	src := bytes.NewReader(make([]byte, total))

	ref, err := client.Upload(context.Background(), "d1", "office/Course/Sections/1/Videos/final.mp4", "final.mp4", src, total, 10*1024*1024)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bytes 0-10485759/26214400",
		"bytes 10485760-20971519/26214400",
		"bytes 20971520-26214399/26214400",
	}, session.ranges)
	assert.Equal(t, int64(total), session.bytes, "bytes sent must equal total exactly")

	assert.Equal(t, "item-1", ref.ItemID)
	assert.Equal(t, "d1", ref.DriveID)
	assert.Equal(t, "final.mp4", ref.Name)
	assert.Equal(t, "video/mp4", ref.Mime)
	assert.Equal(t, int64(total), ref.Size)
	assert.True(t, ref.Valid())
}

func TestUpload_UnevenChunkDivision(t *testing.T) {
	const total = 25
	session := &fakeSession{t: t, total: total}
	srv := session.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "d1", "p/f.bin", "f.bin", bytes.NewReader(make([]byte, total)), total, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bytes 0-9/25",
		"bytes 10-19/25",
		"bytes 20-24/25",
	}, session.ranges)
}

func TestUpload_SingleChunk(t *testing.T) {
	const total = 4
	session := &fakeSession{t: t, total: total}
	srv := session.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "d1", "p/f.bin", "f.bin", strings.NewReader("data"), total, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bytes 0-3/4"}, session.ranges)
}

func TestUpload_EmptySourceRejectedBeforeNetwork(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "d1", "p/f.bin", "f.bin", strings.NewReader(""), 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyUpload)
	assert.Zero(t, calls, "no network call may precede the rejection")
}

func TestUpload_ChunkFailureFatal(t *testing.T) {
	session := &fakeSession{t: t, total: 25, chunkStatus: http.StatusInsufficientStorage}
	srv := session.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "d1", "p/f.bin", "f.bin", bytes.NewReader(make([]byte, 25)), 25, 10)
	require.Error(t, err)

	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusInsufficientStorage, ge.StatusCode)
	assert.Contains(t, ge.Message, "uploadFailed")

	// The session is abandoned after the first failing chunk.
	assert.Len(t, session.ranges, 1)
}

func TestUpload_IncompleteSession(t *testing.T) {
	session := &fakeSession{t: t, total: 25, neverComplete: true}
	srv := session.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "d1", "p/f.bin", "f.bin", bytes.NewReader(make([]byte, 25)), 25, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteSession)
}

func TestUpload_MissingItemIDFatal(t *testing.T) {
	session := &fakeSession{t: t, total: 4, finalBody: `{"name":"f.bin","size":4}`}
	srv := session.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "d1", "p/f.bin", "f.bin", strings.NewReader("data"), 4, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingItemID)
}

func TestUpload_NameFallback(t *testing.T) {
	session := &fakeSession{t: t, total: 4, finalBody: `{"id":"item-9","size":4}`}
	srv := session.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	ref, err := client.Upload(context.Background(), "d1", "p/orig.bin", "orig.bin", strings.NewReader("data"), 4, 10)
	require.NoError(t, err)
	assert.Equal(t, "orig.bin", ref.Name)
	assert.Empty(t, ref.Mime, "mime stays empty when the file facet is absent")
}

func TestCreateUploadSession_ConflictBehaviorReplace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"@microsoft.graph.conflictBehavior":"replace"`)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"uploadUrl":"https://upstream/session"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	session, err := client.CreateUploadSession(context.Background(), "d1", "p/f.bin")
	require.NoError(t, err)
	assert.Equal(t, "https://upstream/session", session.UploadURL)
}

func TestCreateUploadSession_NoUploadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.CreateUploadSession(context.Background(), "d1", "p/f.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no uploadUrl")
}
