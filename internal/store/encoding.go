package store

import (
	"fmt"
	"time"

	"github.com/wolfeidau/payroll/internal/address"
	"google.golang.org/protobuf/encoding/protowire"
)

// Batch wire format (protobuf wire encoding, no generated types):
//
//	1: signature   string
//	2: instruction string
//	3: committed   varint (unix nanoseconds)
//	4: account     message { 1: address bytes, 2: data bytes, 3: version varint }
//	5: balance     message { 1: address bytes, 2: credit varint, 3: debit varint }
const (
	fieldSignature   protowire.Number = 1
	fieldInstruction protowire.Number = 2
	fieldCommitted   protowire.Number = 3
	fieldAccount     protowire.Number = 4
	fieldBalance     protowire.Number = 5

	fieldAddress protowire.Number = 1
	fieldData    protowire.Number = 2
	fieldVersion protowire.Number = 3
	fieldCredit  protowire.Number = 2
	fieldDebit   protowire.Number = 3
)

// MarshalBinary encodes the batch for the journal.
func (b *Batch) MarshalBinary() ([]byte, error) {
	var out []byte

	out = protowire.AppendTag(out, fieldSignature, protowire.BytesType)
	out = protowire.AppendString(out, b.Signature)
	out = protowire.AppendTag(out, fieldInstruction, protowire.BytesType)
	out = protowire.AppendString(out, b.Instruction)
	out = protowire.AppendTag(out, fieldCommitted, protowire.VarintType)
	//nolint:gosec // round trips through the same cast on decode
	out = protowire.AppendVarint(out, uint64(b.CommittedAt.UnixNano()))

	for _, w := range b.Accounts {
		var msg []byte
		msg = protowire.AppendTag(msg, fieldAddress, protowire.BytesType)
		msg = protowire.AppendBytes(msg, w.Address[:])
		msg = protowire.AppendTag(msg, fieldData, protowire.BytesType)
		msg = protowire.AppendBytes(msg, w.Data)
		msg = protowire.AppendTag(msg, fieldVersion, protowire.VarintType)
		//nolint:gosec // versions are validated non-negative
		msg = protowire.AppendVarint(msg, uint64(w.Version))

		out = protowire.AppendTag(out, fieldAccount, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}

	for _, c := range b.Balances {
		var msg []byte
		msg = protowire.AppendTag(msg, fieldAddress, protowire.BytesType)
		msg = protowire.AppendBytes(msg, c.Address[:])
		msg = protowire.AppendTag(msg, fieldCredit, protowire.VarintType)
		msg = protowire.AppendVarint(msg, c.Credit)
		msg = protowire.AppendTag(msg, fieldDebit, protowire.VarintType)
		msg = protowire.AppendVarint(msg, c.Debit)

		out = protowire.AppendTag(out, fieldBalance, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}

	return out, nil
}

// UnmarshalBinary decodes a batch written by MarshalBinary.
func (b *Batch) UnmarshalBinary(data []byte) error {
	*b = Batch{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("failed to decode batch tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldSignature && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("failed to decode signature: %w", protowire.ParseError(n))
			}
			b.Signature = v
			data = data[n:]

		case num == fieldInstruction && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("failed to decode instruction: %w", protowire.ParseError(n))
			}
			b.Instruction = v
			data = data[n:]

		case num == fieldCommitted && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("failed to decode commit time: %w", protowire.ParseError(n))
			}
			//nolint:gosec // written from an int64
			b.CommittedAt = time.Unix(0, int64(v)).UTC()
			data = data[n:]

		case num == fieldAccount && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("failed to decode account write: %w", protowire.ParseError(n))
			}
			w, err := decodeAccountWrite(msg)
			if err != nil {
				return err
			}
			b.Accounts = append(b.Accounts, w)
			data = data[n:]

		case num == fieldBalance && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("failed to decode balance change: %w", protowire.ParseError(n))
			}
			c, err := decodeBalanceChange(msg)
			if err != nil {
				return err
			}
			b.Balances = append(b.Balances, c)
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return nil
}

func decodeAccountWrite(data []byte) (AccountWrite, error) {
	var w AccountWrite

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return w, fmt.Errorf("failed to decode account tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldAddress && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return w, fmt.Errorf("failed to decode account address: %w", protowire.ParseError(n))
			}
			addr, err := address.FromBytes(v)
			if err != nil {
				return w, err
			}
			w.Address = addr
			data = data[n:]

		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return w, fmt.Errorf("failed to decode account data: %w", protowire.ParseError(n))
			}
			w.Data = append([]byte(nil), v...)
			data = data[n:]

		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return w, fmt.Errorf("failed to decode account version: %w", protowire.ParseError(n))
			}
			//nolint:gosec // written from a non-negative int64
			w.Version = int64(v)
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return w, fmt.Errorf("failed to skip account field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return w, nil
}

func decodeBalanceChange(data []byte) (BalanceChange, error) {
	var c BalanceChange

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return c, fmt.Errorf("failed to decode balance tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldAddress && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return c, fmt.Errorf("failed to decode balance address: %w", protowire.ParseError(n))
			}
			addr, err := address.FromBytes(v)
			if err != nil {
				return c, err
			}
			c.Address = addr
			data = data[n:]

		case num == fieldCredit && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, fmt.Errorf("failed to decode credit: %w", protowire.ParseError(n))
			}
			c.Credit = v
			data = data[n:]

		case num == fieldDebit && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, fmt.Errorf("failed to decode debit: %w", protowire.ParseError(n))
			}
			c.Debit = v
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return c, fmt.Errorf("failed to skip balance field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return c, nil
}
