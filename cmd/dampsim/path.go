package main

import (
	"fmt"
	"io"
	"os"

	"github.com/san-kum/dampsim/internal/export"
	"github.com/san-kum/dampsim/internal/storage"
	"github.com/san-kum/dampsim/internal/viz"
	"github.com/spf13/cobra"
)

// loadPath returns the x and y series of a run and its goal position, if any.
func loadPath(runArg string) (xs, ys []float64, goal *[2]float64, meta *storage.RunMetadata, err error) {
	st := storage.New(dataDir)
	runID, err := st.Resolve(runArg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	meta, err = st.Load(runID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	traj, err := st.LoadTrajectory(runID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if xs, err = traj.Series("x"); err != nil {
		return nil, nil, nil, nil, err
	}
	if ys, err = traj.Series("y"); err != nil {
		return nil, nil, nil, nil, err
	}
	if len(meta.Goal) == 4 {
		goal = &[2]float64{meta.Goal[0], meta.Goal[2]}
	}
	return xs, ys, goal, meta, nil
}

func drawPath(cmd *cobra.Command, args []string) error {
	xs, ys, goal, meta, err := loadPath(args[0])
	if err != nil {
		return err
	}
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")

	canvas, err := viz.PathPlot(xs, ys, goal, width, height)
	if err != nil {
		return err
	}

	fmt.Println(field("run", meta.ID))
	fmt.Println(field("mode", meta.Mode))
	fmt.Println(dimStyle.Render(fmt.Sprintf("x %.1f..%.1f, y %.1f..%.1f (y down)", minOf(xs), maxOf(xs), minOf(ys), maxOf(ys))))
	fmt.Print(canvas.String())
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	xs, ys, goal, _, err := loadPath(args[0])
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := export.TrajectoryToSVG(w, xs, ys, goal, export.DefaultSVGOptions()); err != nil {
		return err
	}
	if out != "" {
		fmt.Printf("exported to %s\n", out)
	}
	return nil
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
