// Package inference loads the trained classifier and runs read-only
// inference: class scores plus a class-activation field for the predicted
// class. A loaded Model is immutable and safe for concurrent use; it is
// created once at process start and passed explicitly into every pipeline
// invocation.
package inference

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

// Weight file layout (little-endian):
//
//	magic     [6]byte  "MAMCNN"
//	version   uint16
//	inputSize uint32
//	numConv   uint32
//	per conv: inCh, outCh, kernel uint32; weights float32[outCh][inCh*k*k]; bias float32[outCh]
//	numClass  uint32
//	classW    float32[numClass][lastOutCh]
//	classB    float32[numClass]
var fileMagic = [6]byte{'M', 'A', 'M', 'C', 'N', 'N'}

const fileVersion = 1

// Class indices in the weight file's dense head.
const (
	classBenign    = 0
	classMalignant = 1
)

type convLayer struct {
	inCh    int
	outCh   int
	kernel  int
	weights *mat.Dense // (inCh*k*k) x outCh
	bias    []float64
}

// Model is the loaded classifier: a small convolutional feature extractor
// with a global-average-pooling linear head. All state is read-only after
// Load.
type Model struct {
	inputSize int
	convs     []convLayer
	classW    [][]float64 // [numClass][lastOutCh]
	classB    []float64
	path      string
	sizeBytes int64
}

// Load reads a weight file from disk. Failures return a
// domain.InferenceUnavailable error carrying the expected path and what was
// actually found.
func Load(path string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.InferenceUnavailable(
			fmt.Sprintf("weight file at %s", path),
			fmt.Sprintf("stat failed: %v", err),
		)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, domain.InferenceUnavailable(
			fmt.Sprintf("readable weight file at %s", path),
			fmt.Sprintf("open failed: %v", err),
		)
	}
	defer f.Close()

	m, err := read(f)
	if err != nil {
		return nil, domain.InferenceUnavailable(
			fmt.Sprintf("valid MAMCNN v%d weight file at %s", fileVersion, path),
			err.Error(),
		)
	}
	m.path = path
	m.sizeBytes = info.Size()
	return m, nil
}

func read(r io.Reader) (*Model, error) {
	var magic [6]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("truncated header: %w", err)
	}
	if magic != fileMagic {
		return nil, fmt.Errorf("bad magic %q", magic[:])
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("truncated version: %w", err)
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported version %d", version)
	}

	var inputSize, numConv uint32
	if err := binary.Read(r, binary.LittleEndian, &inputSize); err != nil {
		return nil, fmt.Errorf("truncated input size: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numConv); err != nil {
		return nil, fmt.Errorf("truncated layer count: %w", err)
	}
	if inputSize < 8 || inputSize > 4096 {
		return nil, fmt.Errorf("implausible input size %d", inputSize)
	}
	if numConv == 0 || numConv > 16 {
		return nil, fmt.Errorf("implausible conv layer count %d", numConv)
	}

	m := &Model{inputSize: int(inputSize)}

	prevOut := 1
	for i := 0; i < int(numConv); i++ {
		var inCh, outCh, kernel uint32
		if err := binary.Read(r, binary.LittleEndian, &inCh); err != nil {
			return nil, fmt.Errorf("layer %d: truncated dims: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &outCh); err != nil {
			return nil, fmt.Errorf("layer %d: truncated dims: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &kernel); err != nil {
			return nil, fmt.Errorf("layer %d: truncated dims: %w", i, err)
		}
		if int(inCh) != prevOut {
			return nil, fmt.Errorf("layer %d: input channels %d do not chain from previous output %d", i, inCh, prevOut)
		}
		if outCh == 0 || outCh > 1024 || kernel == 0 || kernel > 11 {
			return nil, fmt.Errorf("layer %d: implausible shape %dx%d k=%d", i, inCh, outCh, kernel)
		}

		wlen := int(outCh) * int(inCh) * int(kernel) * int(kernel)
		weights, err := readFloats(r, wlen)
		if err != nil {
			return nil, fmt.Errorf("layer %d: truncated weights: %w", i, err)
		}
		bias, err := readFloats(r, int(outCh))
		if err != nil {
			return nil, fmt.Errorf("layer %d: truncated bias: %w", i, err)
		}

		// Stored as [outCh][inCh*k*k]; the forward pass multiplies
		// (patches x inCh*k*k) by (inCh*k*k x outCh).
		cols := int(inCh) * int(kernel) * int(kernel)
		wm := mat.NewDense(cols, int(outCh), nil)
		for o := 0; o < int(outCh); o++ {
			for c := 0; c < cols; c++ {
				wm.Set(c, o, weights[o*cols+c])
			}
		}

		m.convs = append(m.convs, convLayer{
			inCh:    int(inCh),
			outCh:   int(outCh),
			kernel:  int(kernel),
			weights: wm,
			bias:    bias,
		})
		prevOut = int(outCh)
	}

	var numClass uint32
	if err := binary.Read(r, binary.LittleEndian, &numClass); err != nil {
		return nil, fmt.Errorf("truncated class count: %w", err)
	}
	if numClass != 2 {
		return nil, fmt.Errorf("expected 2 output classes, got %d", numClass)
	}

	for c := 0; c < int(numClass); c++ {
		row, err := readFloats(r, prevOut)
		if err != nil {
			return nil, fmt.Errorf("class %d: truncated head weights: %w", c, err)
		}
		m.classW = append(m.classW, row)
	}
	classB, err := readFloats(r, int(numClass))
	if err != nil {
		return nil, fmt.Errorf("truncated head bias: %w", err)
	}
	m.classB = classB

	return m, nil
}

func readFloats(r io.Reader, n int) ([]float64, error) {
	buf := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out, nil
}

// InputSize returns the model's expected square input edge in pixels.
func (m *Model) InputSize() int { return m.inputSize }

// Path returns the weight file path the model was loaded from.
func (m *Model) Path() string { return m.path }

// SizeBytes returns the weight file size.
func (m *Model) SizeBytes() int64 { return m.sizeBytes }

// featureMaps holds one layer's activations as channel-major planes.
type featureMaps struct {
	w, h     int
	channels [][]float64
}

// Predict runs the forward pass and returns the class score together with
// the normalized activation field for the predicted class.
//
// The activation field is a gradient-weighted class activation map: with a
// global-average-pooled linear head, the pooled gradient of the class logit
// with respect to feature channel c equals the head weight for c, so each
// final feature map is weighted by its class weight, rectified, and min-max
// normalized to [0, 1].
func (m *Model) Predict(g *imaging.Grayscale) (domain.ClassScore, *imaging.Field, error) {
	if g == nil || g.Width == 0 || g.Height == 0 {
		return domain.ClassScore{}, nil, domain.InputInvalid("empty image tensor")
	}

	input := g
	if g.Width != m.inputSize || g.Height != m.inputSize {
		input = g.Resize(m.inputSize, m.inputSize)
	}

	fm := featureMaps{
		w:        m.inputSize,
		h:        m.inputSize,
		channels: [][]float64{normalizePixels(input.Pix)},
	}

	var err error
	for i, layer := range m.convs {
		fm, err = convolve(fm, layer)
		if err != nil {
			return domain.ClassScore{}, nil, domain.InferenceUnavailable(
				fmt.Sprintf("conv layer %d applicable to %dx%d input", i, fm.w, fm.h),
				err.Error(),
			)
		}
		fm = maxPool(fm)
	}

	// Global average pooling into the linear head.
	gap := make([]float64, len(fm.channels))
	for c, plane := range fm.channels {
		sum := 0.0
		for _, v := range plane {
			sum += v
		}
		gap[c] = sum / float64(len(plane))
	}

	logits := make([]float64, len(m.classW))
	for c, row := range m.classW {
		acc := m.classB[c]
		for i, w := range row {
			acc += w * gap[i]
		}
		logits[c] = acc
	}
	probs := softmax(logits)

	score := domain.ClassScore{
		BenignProbability:    probs[classBenign],
		MalignantProbability: probs[classMalignant],
	}

	pred := classBenign
	if probs[classMalignant] >= probs[classBenign] {
		pred = classMalignant
	}

	field := m.classActivation(fm, pred)
	return score, field, nil
}

// classActivation weights the final feature maps by the head weights of the
// given class, rectifies and normalizes.
func (m *Model) classActivation(fm featureMaps, class int) *imaging.Field {
	field := imaging.NewField(fm.w, fm.h)
	weights := m.classW[class]
	for c, plane := range fm.channels {
		w := weights[c]
		for i, v := range plane {
			field.Values[i] += w * v
		}
	}
	for i, v := range field.Values {
		if v < 0 {
			field.Values[i] = 0
		}
	}
	return field.Normalized()
}

// convolve applies a valid (no padding) convolution with stride 1, bias and
// ReLU, using an im2col patch matrix multiplied against the layer weights.
func convolve(fm featureMaps, layer convLayer) (featureMaps, error) {
	if len(fm.channels) != layer.inCh {
		return featureMaps{}, fmt.Errorf("channel mismatch: have %d, layer expects %d", len(fm.channels), layer.inCh)
	}
	k := layer.kernel
	outW := fm.w - k + 1
	outH := fm.h - k + 1
	if outW <= 0 || outH <= 0 {
		return featureMaps{}, fmt.Errorf("input %dx%d smaller than kernel %d", fm.w, fm.h, k)
	}

	cols := layer.inCh * k * k
	patches := mat.NewDense(outW*outH, cols, nil)
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			row := y*outW + x
			col := 0
			for c := 0; c < layer.inCh; c++ {
				plane := fm.channels[c]
				for ky := 0; ky < k; ky++ {
					base := (y+ky)*fm.w + x
					for kx := 0; kx < k; kx++ {
						patches.Set(row, col, plane[base+kx])
						col++
					}
				}
			}
		}
	}

	var product mat.Dense
	product.Mul(patches, layer.weights)

	out := featureMaps{w: outW, h: outH, channels: make([][]float64, layer.outCh)}
	for o := 0; o < layer.outCh; o++ {
		plane := make([]float64, outW*outH)
		bias := layer.bias[o]
		for i := range plane {
			v := product.At(i, o) + bias
			if v > 0 {
				plane[i] = v
			}
		}
		out.channels[o] = plane
	}
	return out, nil
}

// maxPool applies 2x2 max pooling with stride 2, flooring odd edges.
func maxPool(fm featureMaps) featureMaps {
	outW := fm.w / 2
	outH := fm.h / 2
	if outW == 0 || outH == 0 {
		return fm
	}

	out := featureMaps{w: outW, h: outH, channels: make([][]float64, len(fm.channels))}
	for c, plane := range fm.channels {
		pooled := make([]float64, outW*outH)
		for y := 0; y < outH; y++ {
			for x := 0; x < outW; x++ {
				sx, sy := x*2, y*2
				max := plane[sy*fm.w+sx]
				if v := plane[sy*fm.w+sx+1]; v > max {
					max = v
				}
				if v := plane[(sy+1)*fm.w+sx]; v > max {
					max = v
				}
				if v := plane[(sy+1)*fm.w+sx+1]; v > max {
					max = v
				}
				pooled[y*outW+x] = max
			}
		}
		out.channels[c] = pooled
	}
	return out
}

func normalizePixels(pix []float64) []float64 {
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = v / 255.0
	}
	return out
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
