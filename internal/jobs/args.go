package jobs

import (
	"encoding/json"
	"fmt"
)

// Args はタスクへ渡される位置引数です。各要素は JSON のまま保持し、タスク側で型を確定させます。
type Args []json.RawMessage

// EncodeArgs は任意の値の並びを Args に変換します。
func EncodeArgs(values ...any) (Args, error) {
	args := make(Args, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		args[i] = raw
	}
	return args, nil
}

// Expect は引数の個数を検証します。
func (a Args) Expect(n int) error {
	if len(a) != n {
		return &ArgumentError{Index: -1, Reason: fmt.Sprintf("expected %d arguments, got %d", n, len(a))}
	}
	return nil
}

// Int は i 番目の引数を整数として取り出します。
func (a Args) Int(i int) (int, error) {
	var v int
	if err := a.decode(i, &v, "integer"); err != nil {
		return 0, err
	}
	return v, nil
}

// String は i 番目の引数を文字列として取り出します。
func (a Args) String(i int) (string, error) {
	var v string
	if err := a.decode(i, &v, "string"); err != nil {
		return "", err
	}
	return v, nil
}

func (a Args) decode(i int, dst any, kind string) error {
	if i < 0 || i >= len(a) {
		return &ArgumentError{Index: i, Reason: "missing"}
	}
	if err := json.Unmarshal(a[i], dst); err != nil {
		return &ArgumentError{Index: i, Reason: "expected " + kind}
	}
	return nil
}
