package machine_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/machine"
	"github.com/kolkov/tawk/internal/runtime"
)

func op(o machine.Op, args ...int32) []int32 {
	return append([]int32{int32(o)}, args...)
}

func code(parts ...[]int32) []int32 {
	var out []int32
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// sumImage prints "sum" followed by 1+2 and the value of global x.
func sumImage() *machine.Image {
	img := machine.NewImage("sum")
	img.Nums = []float64{1, 2}
	img.Strs = []string{"sum"}
	img.Globals = []machine.Global{{Name: "x"}}
	img.Code = code(
		op(machine.Str, 0),
		op(machine.Int, 0),
		op(machine.Int, 1),
		op(machine.Add),
		op(machine.LoadGlobal, 0),
		op(machine.Print, 3, int32(ir.RedirectNone)),
		op(machine.Halt),
	)
	img.Lines = []machine.Line{{PC: 0, Line: 1}}
	return img
}

func runImage(t *testing.T, img *machine.Image, settings *runtime.Settings) (string, int, error) {
	t.Helper()
	var out bytes.Buffer
	if settings == nil {
		settings = &runtime.Settings{}
	}
	settings.Stdin = strings.NewReader("")
	settings.Stdout = &out
	settings.Env = []string{}
	code, err := machine.NewScript(img).Run(context.Background(), settings)
	return out.String(), code, err
}

func TestRunImage(t *testing.T) {
	img := sumImage()
	if err := img.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	settings := &runtime.Settings{Assignments: []runtime.Assignment{{Name: "x", Value: "7"}}}
	got, code, err := runImage(t, img, settings)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got != "sum 3 7\n" {
		t.Errorf("output = %q, want %q", got, "sum 3 7\n")
	}
}

func TestRunExitAndCall(t *testing.T) {
	// function f(a) { return a * 2 }  BEGIN { exit f(21) }
	img := machine.NewImage("call")
	img.Nums = []float64{21, 2}
	img.Funcs = []machine.Func{{Name: "f", Params: []string{"a"}}}
	main := code(
		op(machine.Int, 0),
		op(machine.CallUser, 0, 1),
		op(machine.Exit, 1),
	)
	// Exit jumps to the Halt at the end of main.
	halt := int32(len(main) + 2)
	img.Code = code(op(machine.SetExit, halt), main, op(machine.Halt))
	img.Funcs[0].Entry = int32(len(img.Code))
	img.Code = append(img.Code, code(
		op(machine.LoadLocal, 0),
		op(machine.Int, 1),
		op(machine.Mul),
		op(machine.Return),
	)...)
	if err := img.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	_, code, err := runImage(t, img, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 42 {
		t.Errorf("exit code = %d, want 42", code)
	}
}

func TestRuntimeErrorLine(t *testing.T) {
	img := machine.NewImage("div")
	img.Nums = []float64{1, 0}
	img.Code = code(
		op(machine.Int, 0),
		op(machine.Int, 1),
		op(machine.Div),
		op(machine.Drop),
		op(machine.Halt),
	)
	img.Lines = []machine.Line{{PC: 0, Line: 3}}
	_, code, err := runImage(t, img, nil)
	var rerr *runtime.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want runtime error", err)
	}
	if rerr.Line != 3 {
		t.Errorf("line = %d, want 3", rerr.Line)
	}
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestEncodeDecode(t *testing.T) {
	img := sumImage()
	data, err := machine.Marshal(img)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !machine.IsImage(data) {
		t.Fatal("encoded image lacks magic")
	}
	got, err := machine.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BuildID != img.BuildID {
		t.Errorf("build ID = %s, want %s", got.BuildID, img.BuildID)
	}
	if got.Name != "sum" || len(got.Code) != len(img.Code) {
		t.Errorf("decoded image differs: %+v", got)
	}

	if _, err := machine.Decode(strings.NewReader("TAIR\x01")); !errors.Is(err, machine.ErrNotImage) {
		t.Errorf("decode of foreign data: err = %v, want ErrNotImage", err)
	}
	if _, err := machine.Decode(strings.NewReader("")); !errors.Is(err, machine.ErrNotImage) {
		t.Errorf("decode of empty input: err = %v, want ErrNotImage", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name string
		edit func(img *machine.Image)
		want string
	}{
		{"invalid op", func(img *machine.Image) { img.Code = []int32{999} }, "invalid instruction"},
		{"truncated", func(img *machine.Image) { img.Code = op(machine.Print, 1) }, "truncated"},
		{"number pool", func(img *machine.Image) { img.Code = op(machine.Num, 9) }, "number 9"},
		{"string pool", func(img *machine.Image) { img.Code = op(machine.Str, 9) }, "string 9"},
		{"jump into operand", func(img *machine.Image) {
			img.Code = code(op(machine.Jump, 3), op(machine.Int, 0), op(machine.Halt))
		}, "is not an instruction"},
		{"function entry", func(img *machine.Image) {
			img.Funcs = []machine.Func{{Name: "f", Entry: 100}}
		}, "function f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := sumImage()
			tt.edit(img)
			err := img.Verify()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Verify() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLineAt(t *testing.T) {
	img := &machine.Image{Lines: []machine.Line{{PC: 0, Line: 1}, {PC: 5, Line: 4}, {PC: 9, Line: 7}}}
	for pc, want := range map[int]int{0: 1, 4: 1, 5: 4, 8: 4, 9: 7, 100: 7} {
		if got := img.LineAt(pc); got != want {
			t.Errorf("LineAt(%d) = %d, want %d", pc, got, want)
		}
	}
	if got := (&machine.Image{}).LineAt(3); got != 0 {
		t.Errorf("LineAt on empty table = %d, want 0", got)
	}
}

func TestDisassemble(t *testing.T) {
	var sb strings.Builder
	if err := sumImage().Disassemble(&sb); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"LoadGlobal", "; x", `; "sum"`, "Halt"} {
		if !strings.Contains(sb.String(), want) {
			t.Errorf("listing lacks %q:\n%s", want, sb.String())
		}
	}
}
