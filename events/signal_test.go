package events

import (
	"sync"
	"testing"

	"go.viam.com/test"
)

func TestSignal(t *testing.T) {
	s := NewSignal()
	_, ok := s.Take()
	test.That(t, ok, test.ShouldBeFalse)

	s.Post('w')
	b, ok := s.Peek()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b, test.ShouldEqual, byte('w'))

	t.Run("newer post overwrites", func(t *testing.T) {
		s.Post(' ')
		b, ok := s.Take()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, b, test.ShouldEqual, byte(' '))
		_, ok = s.Take()
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("zero byte is a real value", func(t *testing.T) {
		s.Post(0)
		b, ok := s.Take()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, b, test.ShouldEqual, byte(0))
	})

	t.Run("take if", func(t *testing.T) {
		s.Post('a')
		test.That(t, s.TakeIf(' '), test.ShouldBeFalse)
		b, ok := s.Peek()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, b, test.ShouldEqual, byte('a'))
		test.That(t, s.TakeIf('a'), test.ShouldBeTrue)
		_, ok = s.Peek()
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("clear", func(t *testing.T) {
		s.Post('x')
		s.Clear()
		_, ok := s.Peek()
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestSignalConcurrentTake(t *testing.T) {
	s := NewSignal()
	s.Post('s')

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take(); ok {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	test.That(t, taken, test.ShouldEqual, 1)
}
