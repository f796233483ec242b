package storage_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanchain/go-swan-sdk/pkg/storage"
)

func TestTimeDecoding(t *testing.T) {
	expected := time.Date(2023, time.March, 13, 18, 6, 50, 0, time.UTC).Unix()

	for _, input := range []string{
		`"2023-03-13T18:06:50Z"`,
		`"2023-03-13T20:06:50+02:00"`,
		`"2023-03-13T18:06:50"`,
		`"2023-03-13 18:06:50"`,
		`"2023-03-13T18:06:50.000000Z"`,
		`"1678730810"`,
		`1678730810`,
	} {
		var ts storage.Time
		require.NoError(t, json.Unmarshal([]byte(input), &ts), input)
		assert.Equal(t, expected, ts.UnixSeconds(), input)
	}
}

func TestTimeDecodingEmpty(t *testing.T) {
	for _, input := range []string{`null`, `""`} {
		ts := storage.NewTime(time.Now())
		require.NoError(t, json.Unmarshal([]byte(input), &ts))
		assert.True(t, ts.IsZero())
		assert.Equal(t, int64(0), ts.UnixSeconds())
	}
}

func TestTimeDecodingGarbage(t *testing.T) {
	var ts storage.Time
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`true`), &ts))
}

func TestTimeEncoding(t *testing.T) {
	ts := storage.NewTime(time.Date(2023, time.March, 13, 18, 6, 50, 0, time.UTC))
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2023-03-13T18:06:50Z"`, string(data))

	data, err = json.Marshal(storage.Time{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(data))
}
