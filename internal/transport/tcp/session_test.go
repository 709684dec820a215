package tcp

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  []string
		err   []error
	}{
		{
			name:  "lines",
			input: "ab\ncd\n",
			limit: 8,
			want:  []string{"ab\n", "cd\n", ""},
			err:   []error{nil, nil, io.EOF},
		},
		{
			name:  "unterminated last line",
			input: "ab\ncd",
			limit: 8,
			want:  []string{"ab\n", "cd", ""},
			err:   []error{nil, nil, io.EOF},
		},
		{
			name:  "exactly limit",
			input: "abcd\n",
			limit: 4,
			want:  []string{"abcd\n", ""},
			err:   []error{nil, io.EOF},
		},
		{
			name:  "too long then next line",
			input: "abcde\nok\n",
			limit: 4,
			want:  []string{"", "ok\n", ""},
			err:   []error{errLineTooLong, nil, io.EOF},
		},
		{
			name:  "too long without newline",
			input: "abcdefgh",
			limit: 4,
			want:  []string{""},
			err:   []error{io.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// バッファより長い行で ErrBufferFull を経由させる
			r := bufio.NewReaderSize(strings.NewReader(tt.input), 16)
			for i := range tt.want {
				line, err := readLine(r, tt.limit)
				if tt.err[i] == nil {
					require.NoError(t, err)
				} else {
					require.ErrorIs(t, err, tt.err[i])
				}
				assert.Equal(t, tt.want[i], string(line))
			}
		})
	}
}

func TestReadLine_SpansBuffer(t *testing.T) {
	long := strings.Repeat("x", 100)
	r := bufio.NewReaderSize(strings.NewReader(long+"\n"+long+"y\nz\n"), 16)

	line, err := readLine(r, 100)
	require.NoError(t, err)
	assert.Equal(t, long+"\n", string(line))

	_, err = readLine(r, 100)
	assert.ErrorIs(t, err, errLineTooLong)

	line, err = readLine(r, 100)
	require.NoError(t, err)
	assert.Equal(t, "z\n", string(line))
}
