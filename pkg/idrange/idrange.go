// Package idrange 将一对学号展开为其间的全部学号。
//
// 学号由字母前缀和定宽数字序号组成，例如 AXCF2025050001。
package idrange

import (
	"errors"
	"math"
	"regexp"
	"strconv"
)

// ErrInvalidRange 学号格式错误、前缀不一致、区间为空或数量超出 uint64
var ErrInvalidRange = errors.New("学号范围无效")

// 预分配上限，调用方应先用 Size 做数量校验
const maxPrealloc = 1 << 16

var idPattern = regexp.MustCompile(`^([A-Za-z]+)([0-9]+)$`)

// Parse 将学号拆分为字母前缀和数字部分
func Parse(id string) (prefix, digits string, err error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", ErrInvalidRange
	}
	return m[1], m[2], nil
}

// Expand 返回 [startID, endID] 闭区间内按序号递增的学号列表。
// 序号宽度取自 startID，超出原宽度时自然变长（"099" → "100"）。
func Expand(startID, endID string) ([]string, error) {
	b, err := parseBounds(startID, endID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, min(b.size(), maxPrealloc))
	for n := b.from; ; n++ {
		ids = append(ids, b.prefix+pad(n, b.width))
		if n == b.to {
			break
		}
	}
	return ids, nil
}

// Size 返回区间内学号数量，不实际展开
func Size(startID, endID string) (uint64, error) {
	b, err := parseBounds(startID, endID)
	if err != nil {
		return 0, err
	}
	return b.size(), nil
}

type bounds struct {
	prefix   string
	from, to uint64
	width    int
}

// size 在 parseBounds 校验后不会回绕
func (b bounds) size() uint64 {
	return b.to - b.from + 1
}

func parseBounds(startID, endID string) (bounds, error) {
	startPrefix, startDigits, err := Parse(startID)
	if err != nil {
		return bounds{}, err
	}
	endPrefix, endDigits, err := Parse(endID)
	if err != nil {
		return bounds{}, err
	}
	if startPrefix != endPrefix {
		return bounds{}, ErrInvalidRange
	}

	from, err := strconv.ParseUint(startDigits, 10, 64)
	if err != nil {
		return bounds{}, ErrInvalidRange
	}
	to, err := strconv.ParseUint(endDigits, 10, 64)
	if err != nil {
		return bounds{}, ErrInvalidRange
	}
	if from > to {
		return bounds{}, ErrInvalidRange
	}
	// 0..MaxUint64 共 2^64 个，数量本身无法用 uint64 表示
	if to-from == math.MaxUint64 {
		return bounds{}, ErrInvalidRange
	}
	return bounds{prefix: startPrefix, from: from, to: to, width: len(startDigits)}, nil
}

func pad(n uint64, width int) string {
	s := strconv.FormatUint(n, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
