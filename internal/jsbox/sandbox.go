package jsbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// ErrNotString は式の結果が文字列でなかったとき。
var ErrNotString = errors.New("script result is not a string")

// Sandbox は信頼できないスクリプトを goja で評価する。
// 呼び出しごとに新しい Runtime を作るので状態は残らない。
type Sandbox struct {
	timeout time.Duration
}

// New は timeout 付きの Sandbox を作る。0 以下なら 5 秒。
func New(timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sandbox{timeout: timeout}
}

// EvalString は (expr) を評価し、結果の文字列を返す。
func (s *Sandbox) EvalString(ctx context.Context, expr string) (string, error) {
	v, err := s.run(ctx, "("+expr+")")
	if err != nil {
		return "", err
	}
	out, ok := v.Export().(string)
	if !ok {
		return "", ErrNotString
	}
	return out, nil
}

// RunJSON は body を関数本体として実行し、戻り値を JSON.stringify した結果を返す。
func (s *Sandbox) RunJSON(ctx context.Context, body string) ([]byte, error) {
	v, err := s.run(ctx, "JSON.stringify((function() {\n"+body+"\n})())")
	if err != nil {
		return nil, err
	}
	out, ok := v.Export().(string)
	if !ok {
		// undefined を返した関数
		return []byte("null"), nil
	}
	return []byte(out), nil
}

func (s *Sandbox) run(ctx context.Context, src string) (goja.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vm := goja.New()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	v, err := vm.RunString(src)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("script interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("script: %w", err)
	}
	return v, nil
}
