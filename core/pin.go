package core

import (
	"fmt"
	"strconv"
	"strings"
)

// boardToBCM maps 40-pin header positions to Broadcom channels.
var boardToBCM = map[int]GPIOPin{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

// BoardToBCM translates a physical header position into a Broadcom channel.
func BoardToBCM(board int) (GPIOPin, bool) {
	pin, ok := boardToBCM[board]
	return pin, ok
}

// ResolvePin translates pin under mode into a Broadcom channel.
func ResolvePin(mode PinMode, pin GPIOPin) (GPIOPin, error) {
	switch mode {
	case ModeBCM:
		return pin, nil
	case ModeBoard:
		bcm, ok := BoardToBCM(int(pin))
		if !ok {
			return 0, fmt.Errorf("board pin %d is not a GPIO", pin)
		}
		return bcm, nil
	default:
		return 0, fmt.Errorf("unknown pin mode %d", mode)
	}
}

// LookupPin parses a pin name such as "gpio17", "GPIO17", "bcm17" or "17".
func LookupPin(name string) (GPIOPin, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range []string{"gpio", "bcm", "p"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pin name %q", name)
	}
	return GPIOPin(n), nil
}
