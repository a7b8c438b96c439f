package kds

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tableflow/api/internal/model"
)

// Keypad collects PIN digits for a Gate and verifies automatically once all
// six slots are filled. Input is frozen while a verification is in flight,
// so a complete PIN is submitted at most once.
type Keypad struct {
	gate *Gate

	mu         sync.Mutex
	slots      [model.KitchenPinLength]byte
	submitting bool
	verified   bool
}

func NewKeypad(gate *Gate) *Keypad {
	return &Keypad{gate: gate}
}

// Digits returns the digits entered so far, in slot order, skipping empty slots.
func (k *Keypad) Digits() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.digitsLocked()
}

func (k *Keypad) digitsLocked() string {
	var b strings.Builder
	for _, d := range k.slots {
		if d != 0 {
			b.WriteByte(d)
		}
	}
	return b.String()
}

func (k *Keypad) completeLocked() bool {
	for _, d := range k.slots {
		if d == 0 {
			return false
		}
	}
	return true
}

// Press fills the first empty slot with digit. When every slot is still
// filled from a failed attempt, the digit starts a new entry. verified
// reports whether this press completed the PIN and the gate accepted it.
func (k *Keypad) Press(ctx context.Context, digit byte) (verified bool, err error) {
	if digit < '0' || digit > '9' {
		return false, ErrInvalidPinFormat
	}
	k.mu.Lock()
	if err := k.editableLocked(); err != nil {
		k.mu.Unlock()
		return false, err
	}
	if k.completeLocked() {
		k.slots = [model.KitchenPinLength]byte{}
	}
	for i, d := range k.slots {
		if d == 0 {
			k.slots[i] = digit
			break
		}
	}
	return k.maybeSubmit(ctx)
}

// Input sets slots starting at index from value. Non-digits are ignored; an
// empty value clears the slot at index. Pasting a whole PIN into slot 0
// fills every slot.
func (k *Keypad) Input(ctx context.Context, index int, value string) (verified bool, err error) {
	if index < 0 || index >= len(k.slots) {
		return false, ErrInvalidPinFormat
	}
	k.mu.Lock()
	if err := k.editableLocked(); err != nil {
		k.mu.Unlock()
		return false, err
	}
	if value == "" {
		k.slots[index] = 0
		k.mu.Unlock()
		return false, nil
	}
	i := index
	for j := 0; j < len(value) && i < len(k.slots); j++ {
		if c := value[j]; c >= '0' && c <= '9' {
			k.slots[i] = c
			i++
		}
	}
	return k.maybeSubmit(ctx)
}

// Backspace clears the last filled slot.
func (k *Keypad) Backspace() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.editableLocked(); err != nil {
		return err
	}
	for i := len(k.slots) - 1; i >= 0; i-- {
		if k.slots[i] != 0 {
			k.slots[i] = 0
			break
		}
	}
	return nil
}

// Clear empties every slot.
func (k *Keypad) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.submitting {
		return ErrVerifyInProgress
	}
	k.slots = [model.KitchenPinLength]byte{}
	k.verified = false
	return nil
}

func (k *Keypad) editableLocked() error {
	if k.submitting {
		return ErrVerifyInProgress
	}
	if k.verified {
		return ErrAlreadyVerified
	}
	return nil
}

// maybeSubmit must be called with k.mu held; it releases it.
func (k *Keypad) maybeSubmit(ctx context.Context) (bool, error) {
	if !k.completeLocked() {
		k.mu.Unlock()
		return false, nil
	}
	k.submitting = true
	pin := k.digitsLocked()
	k.mu.Unlock()

	err := k.gate.Verify(ctx, pin)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.submitting = false
	switch {
	case err == nil:
		k.verified = true
		return true, nil
	case errors.Is(err, ErrWrongPin), errors.Is(err, ErrPinRejected):
		k.slots = [model.KitchenPinLength]byte{}
	}
	return false, err
}
