package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestRemote_RecognizeAnnotated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/readtext", r.URL.Path)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"coordinates": [[10,5],[90,5],[90,20],[10,20]], "text": "S1234567A", "confidence": 0.97},
			{"coordinates": [[10,30],[80,30],[80,45],[10,45]], "text": "  ", "confidence": 0.5},
			{"coordinates": [[10,50],[70,52],[71,60],[9,61]], "text": "JOHN DOE", "confidence": 1.4}
		]`))
	}))
	defer srv.Close()

	anns, err := NewRemote(srv.URL+"/").RecognizeAnnotated(context.Background(), testImage())
	require.NoError(t, err)
	require.Len(t, anns, 2)

	assert.Equal(t, "S1234567A", anns[0].Text)
	assert.Equal(t, Box{X1: 10, Y1: 5, X2: 90, Y2: 20}, anns[0].Box)
	assert.InDelta(t, 0.97, anns[0].Confidence, 1e-9)

	assert.Equal(t, "JOHN DOE", anns[1].Text)
	assert.Equal(t, Box{X1: 9, Y1: 50, X2: 71, Y2: 61}, anns[1].Box)
	assert.Equal(t, 1.0, anns[1].Confidence, "confidence is clamped to 1")
}

func TestRemote_RecognizeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text", r.URL.Path)
		_, _ = w.Write([]byte(`{"text": "IDENTITY CARD No. S1234567A"}`))
	}))
	defer srv.Close()

	text, err := NewRemote(srv.URL).RecognizeText(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "IDENTITY CARD No. S1234567A", text)
}

func TestRemote_EmptyAndErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"blank text", http.StatusOK, `{"text": " \n "}`, ErrEmptyResult},
		{"server error", http.StatusInternalServerError, `boom`, ErrUnavailable},
		{"model loading", http.StatusServiceUnavailable, `warming up`, ErrUnavailable},
		{"bad json", http.StatusOK, `{`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemote(srv.URL).RecognizeText(context.Background(), testImage())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemote(url).RecognizeAnnotated(context.Background(), testImage())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRemote_NoFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL).RecognizeAnnotated(context.Background(), testImage())
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestRemote_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewRemote(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := client.RecognizeText(context.Background(), testImage())
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}
