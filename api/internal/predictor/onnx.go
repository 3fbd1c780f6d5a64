package predictor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

type RuntimeConfig struct {
	// LibraryPath — путь к libonnxruntime; пусто → ONNXRUNTIME_SHARED_LIBRARY_PATH.
	LibraryPath string
	// Sessions — размер пула сессий (параллельные Score).
	Sessions   int
	InputName  string
	OutputName string
	// IntraThreads — потоки внутри одного Run; 0 — решает onnxruntime.
	IntraThreads int
}

// ONNXScorer — классификатор, экспортированный из Keras в ONNX.
type ONNXScorer struct {
	seqLen   int
	sessions chan *onnxSession
	size     int
}

type onnxSession struct {
	session *ort.AdvancedSession
	input   ort.Value
	fill    func(ids []int)
	output  *ort.Tensor[float32]
}

func NewONNXScorer(modelPath string, seqLen int, rt RuntimeConfig) (*ONNXScorer, error) {
	lib := strings.TrimSpace(rt.LibraryPath)
	if lib == "" {
		lib = strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"))
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model io: %w", err)
	}
	in, err := pickIO(inputs, rt.InputName)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	out, err := pickIO(outputs, rt.OutputName)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	size := rt.Sessions
	if size <= 0 {
		size = 1
	}
	s := &ONNXScorer{seqLen: seqLen, sessions: make(chan *onnxSession, size), size: size}
	for i := 0; i < size; i++ {
		ss, err := newONNXSession(modelPath, seqLen, in, out.Name, rt.IntraThreads)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.sessions <- ss
	}
	return s, nil
}

func pickIO(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, errors.New("model declares none")
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return ort.InputOutputInfo{}, fmt.Errorf("%q not found, have %v", name, names)
}

func newONNXSession(modelPath string, seqLen int, in ort.InputOutputInfo, outName string, intra int) (*onnxSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if intra > 0 {
		if err := opts.SetIntraOpNumThreads(intra); err != nil {
			return nil, fmt.Errorf("set intra threads: %w", err)
		}
	}

	shape := ort.NewShape(1, int64(seqLen))
	input, fill, err := newInputTensor(in.DataType, shape)
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{in.Name}, []string{outName},
		[]ort.Value{input}, []ort.Value{output},
		opts,
	)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &onnxSession{session: session, input: input, fill: fill, output: output}, nil
}

// Keras Input по умолчанию float32, но после конвертации встречаются int32/int64.
func newInputTensor(dt ort.TensorElementDataType, shape ort.Shape) (ort.Value, func([]int), error) {
	switch dt {
	case ort.TensorElementDataTypeInt64:
		t, err := ort.NewEmptyTensor[int64](shape)
		if err != nil {
			return nil, nil, fmt.Errorf("allocate input tensor: %w", err)
		}
		return t, func(ids []int) {
			d := t.GetData()
			for i := range d {
				d[i] = int64(ids[i])
			}
		}, nil
	case ort.TensorElementDataTypeInt32:
		t, err := ort.NewEmptyTensor[int32](shape)
		if err != nil {
			return nil, nil, fmt.Errorf("allocate input tensor: %w", err)
		}
		return t, func(ids []int) {
			d := t.GetData()
			for i := range d {
				d[i] = int32(ids[i])
			}
		}, nil
	case ort.TensorElementDataTypeFloat:
		t, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			return nil, nil, fmt.Errorf("allocate input tensor: %w", err)
		}
		return t, func(ids []int) {
			d := t.GetData()
			for i := range d {
				d[i] = float32(ids[i])
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported input element type %v", dt)
	}
}

func (s *ONNXScorer) Score(ids []int) (float64, error) {
	if len(ids) != s.seqLen {
		return 0, fmt.Errorf("sequence length %d, want %d", len(ids), s.seqLen)
	}
	ss := <-s.sessions
	defer func() { s.sessions <- ss }()

	ss.fill(ids)
	if err := ss.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}
	out := ss.output.GetData()
	if len(out) == 0 {
		return 0, errors.New("onnx run: empty output")
	}
	return float64(out[0]), nil
}

// Close освобождает сессии. Вызывать после остановки всех Score.
func (s *ONNXScorer) Close() error {
	var errs []error
	for i := 0; i < s.size; i++ {
		select {
		case ss := <-s.sessions:
			errs = append(errs, ss.session.Destroy(), ss.input.Destroy(), ss.output.Destroy())
		default:
			return errors.Join(errs...)
		}
	}
	return errors.Join(errs...)
}
