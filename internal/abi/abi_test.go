package abi

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_EmbeddedZeroBytes(t *testing.T) {
	raw := []byte{'1', 0, '2', 0, 0, '3'}
	b := CopyBuffer(raw)

	assert.Equal(t, 6, b.Len())
	assert.Equal(t, raw, b.Bytes())
	assert.Equal(t, "1\x002\x00\x003", b.String())
}

func TestBuffer_CopyIsIndependent(t *testing.T) {
	raw := []byte("1239999999")
	b := CopyBuffer(raw)
	raw[0] = 'X'

	assert.Equal(t, "1239999999", b.String(), "CopyBuffer must not alias caller memory")
}

func TestBuffer_BorrowAliases(t *testing.T) {
	raw := []byte("abc")
	b := BorrowBuffer(raw)
	raw[0] = 'X'

	assert.Equal(t, "Xbc", b.String())
}

func TestBuffer_Zero(t *testing.T) {
	var b Buffer
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "", b.String())
	assert.Equal(t, 0, b.Clone().Len())
}

func TestLedger_IssueEmpty(t *testing.T) {
	l := NewLedger()
	arr := l.Issue()

	require.NotNil(t, arr)
	assert.Equal(t, 0, arr.Len())
	strs, err := arr.Strings()
	require.NoError(t, err)
	assert.Empty(t, strs)
}

func TestLedger_IssueCopiesItems(t *testing.T) {
	l := NewLedger()
	item := []byte("payload")
	arr := l.Issue([]byte("true"), item)
	item[0] = 'X'

	b, err := arr.At(1)
	require.NoError(t, err)
	assert.Equal(t, "payload", b.String())
	assert.Equal(t, len("true")+len("payload"), arr.Size())
}

func TestLedger_ReleaseOnce(t *testing.T) {
	l := NewLedger()
	arr := l.IssueStrings("true", "x")

	n, bytes := l.Outstanding()
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, bytes)

	require.NoError(t, l.Release(arr))
	n, bytes = l.Outstanding()
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, bytes)
	assert.True(t, arr.Released())
}

func TestLedger_DoubleFreeRejected(t *testing.T) {
	l := NewLedger()
	arr := l.IssueStrings("true")

	require.NoError(t, l.Release(arr))
	err := l.Release(arr)
	assert.ErrorIs(t, err, ErrDoubleFree)

	n, _ := l.Outstanding()
	assert.Equal(t, 0, n)
}

func TestLedger_UseAfterRelease(t *testing.T) {
	l := NewLedger()
	arr := l.IssueStrings("true", "payload")
	require.NoError(t, l.Release(arr))

	assert.Equal(t, 0, arr.Len())
	assert.Equal(t, 0, arr.Size())
	_, err := arr.At(0)
	assert.ErrorIs(t, err, ErrReleased)
	_, err = arr.Strings()
	assert.ErrorIs(t, err, ErrReleased)
}

func TestLedger_ForeignArrayRejected(t *testing.T) {
	a := NewLedger()
	b := NewLedger()
	arr := a.IssueStrings("true")

	assert.ErrorIs(t, b.Release(arr), ErrForeignArray)
	assert.False(t, arr.Released())
	require.NoError(t, a.Release(arr))
}

func TestLedger_NilRejected(t *testing.T) {
	assert.ErrorIs(t, NewLedger().Release(nil), ErrNilArray)
}

func TestArray_AtOutOfRange(t *testing.T) {
	arr := NewLedger().IssueStrings("only")

	_, err := arr.At(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = arr.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLedger_LargePayload(t *testing.T) {
	l := NewLedger()
	big := strings.Repeat("9", 100_000)
	arr := l.IssueStrings("true", big)

	b, err := arr.At(1)
	require.NoError(t, err)
	assert.Equal(t, 100_000, b.Len())
}

func TestLedger_ReleaseAll(t *testing.T) {
	l := NewLedger()
	a := l.IssueStrings("a")
	b := l.IssueStrings("b")

	assert.Equal(t, 2, l.ReleaseAll())
	assert.True(t, a.Released())
	assert.True(t, b.Released())
	assert.ErrorIs(t, l.Release(a), ErrDoubleFree)
}

func TestLedger_ConcurrentIssueRelease(t *testing.T) {
	l := NewLedger()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				arr := l.IssueStrings("true", "x")
				if err := l.Release(arr); err != nil {
					t.Errorf("Release: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	n, bytes := l.Outstanding()
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, bytes)
}
