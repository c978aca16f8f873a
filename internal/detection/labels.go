package detection

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// COCOLabels is the 91-slot COCO category table used by torchvision detection models.
// Index 0 is the background class; "N/A" marks ids unused by the dataset.
var COCOLabels = []string{
	"__background__", "person", "bicycle", "car", "motorcycle", "airplane", "bus",
	"train", "truck", "boat", "traffic light", "fire hydrant", "N/A", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "N/A", "backpack", "umbrella", "N/A", "N/A",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "N/A", "wine glass", "cup", "fork", "knife", "spoon", "bowl",
	"banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza",
	"donut", "cake", "chair", "couch", "potted plant", "bed", "N/A", "dining table",
	"N/A", "N/A", "toilet", "N/A", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone",
	"microwave", "oven", "toaster", "sink", "refrigerator", "N/A", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// LoadLabels reads a label file with one class name per line.
// Blank lines are kept as empty names so line numbers stay aligned with class ids.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer f.Close()

	labels := make([]string, 0, 100)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// LabelName returns the display name of class, falling back to "class N" when the
// table has no usable entry for it.
func LabelName(labels []string, class int) string {
	if class >= 0 && class < len(labels) {
		if name := labels[class]; name != "" && name != "N/A" {
			return name
		}
	}
	return fmt.Sprintf("class %d", class)
}
