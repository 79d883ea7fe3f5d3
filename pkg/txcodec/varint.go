package txcodec

import "fmt"

// readCompactSize reads a bitcoin variable-length integer and rejects
// non-minimal encodings.
func (r *reader) readCompactSize() (uint64, error) {
	discr, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch discr {
	case 0xFF:
		b, err := r.take(8)
		if err != nil {
			return 0, err
		}
		v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
			uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
		if v <= 0xFFFFFFFF {
			return 0, fmt.Errorf("%w: non-canonical compact size", ErrMalformed)
		}
		return v, nil
	case 0xFE:
		b, err := r.take(4)
		if err != nil {
			return 0, err
		}
		v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24
		if v <= 0xFFFF {
			return 0, fmt.Errorf("%w: non-canonical compact size", ErrMalformed)
		}
		return v, nil
	case 0xFD:
		b, err := r.take(2)
		if err != nil {
			return 0, err
		}
		v := uint64(b[0]) | uint64(b[1])<<8
		if v < 0xFD {
			return 0, fmt.Errorf("%w: non-canonical compact size", ErrMalformed)
		}
		return v, nil
	default:
		return uint64(discr), nil
	}
}
