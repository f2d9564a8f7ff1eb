package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Первый байт записи описывает формат тела
const (
	formatJSON byte = iota
	formatZstd
)

var errEmptyRecord = errors.New("пустая запись")

// Codec кодирует ChunkRuns в байты. JSON опционально сжимается zstd.
type Codec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewCodec создает кодек. Распаковка доступна всегда, сжатие только при compress.
func NewCodec(compress bool) (*Codec, error) {
	c := &Codec{compress: compress}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd декодер: %w", err)
	}
	c.dec = dec
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("не удалось создать zstd энкодер: %w", err)
		}
		c.enc = enc
	}
	return c, nil
}

// Encode сериализует интервалы
func (c *Codec) Encode(r *ChunkRuns) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации интервалов: %w", err)
	}
	if !c.compress {
		return append([]byte{formatJSON}, raw...), nil
	}
	out := make([]byte, 1, len(raw)/4+1)
	out[0] = formatZstd
	return c.enc.EncodeAll(raw, out), nil
}

// Decode восстанавливает интервалы из записи любого формата
func (c *Codec) Decode(data []byte) (*ChunkRuns, error) {
	if len(data) == 0 {
		return nil, errEmptyRecord
	}
	body := data[1:]
	switch data[0] {
	case formatJSON:
	case formatZstd:
		raw, err := c.dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки: %w", err)
		}
		body = raw
	default:
		return nil, fmt.Errorf("неизвестный формат записи %d", data[0])
	}

	var r ChunkRuns
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("ошибка десериализации интервалов: %w", err)
	}
	return &r, nil
}

// Close освобождает ресурсы zstd
func (c *Codec) Close() {
	if c.enc != nil {
		c.enc.Close()
	}
	c.dec.Close()
}
