package imagestore

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
)

var fileNamePattern = regexp.MustCompile(`^log_card_[0-9a-f]{12}\.jpg$`)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 6), uint8(y * 12), 128, 255})
		}
	}
	return img
}

func TestFileName(t *testing.T) {
	a := FileName(document.KindLogCard)
	b := FileName(document.KindLogCard)
	assert.Regexp(t, fileNamePattern, a)
	assert.NotEqual(t, a, b)
}

func TestFS_Save(t *testing.T) {
	root := t.TempDir()
	s := NewFS(root)

	path, err := s.Save(context.Background(), "john_doe", document.KindLogCard, sampleImage())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "john_doe"), filepath.Dir(path))
	assert.Regexp(t, fileNamePattern, filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	// The person folder is reused.
	second, err := s.Save(context.Background(), "john_doe", document.KindLogCard, sampleImage())
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(path), filepath.Dir(second))
	entries, err := os.ReadDir(filepath.Join(root, "john_doe"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFS_RejectsUnsafeFolders(t *testing.T) {
	s := NewFS(t.TempDir())
	for _, key := range []string{"", ".", "..", "../etc", `a\b`} {
		_, err := s.Save(context.Background(), key, document.KindLogCard, sampleImage())
		assert.ErrorIs(t, err, ErrStore, key)
	}
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Save(t *testing.T) {
	client := &fakeS3{}
	s := NewS3(client, "intake-bucket", "/uploads/")

	url, err := s.Save(context.Background(), "john_doe", document.KindLogCard, sampleImage())
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "intake-bucket", aws.ToString(in.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(in.ContentType))
	key := aws.ToString(in.Key)
	assert.Equal(t, "uploads/john_doe", filepath.Dir(key))
	assert.Regexp(t, fileNamePattern, filepath.Base(key))
	assert.Equal(t, "s3://intake-bucket/"+key, url)

	_, err = jpeg.Decode(bytes.NewReader(client.bodies[0]))
	assert.NoError(t, err)
}

func TestS3_SaveFailure(t *testing.T) {
	boom := errors.New("access denied")
	s := NewS3(&fakeS3{err: boom}, "b", "")

	_, err := s.Save(context.Background(), "john_doe", document.KindIdentityCard, sampleImage())
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, boom)
}

var (
	_ Store = (*FS)(nil)
	_ Store = (*S3)(nil)
)
