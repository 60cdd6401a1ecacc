package traceenergy

import (
	"fmt"
	"math"
	"strings"
)

// BuildNotes renders a console summary of one analyzed capture.
func BuildNotes(r *FileReport) string {
	if r == nil {
		return ""
	}

	var b strings.Builder

	if r.Label != "" {
		fmt.Fprintf(&b, "Node %d (%s) | %s\n", r.Node, r.Label, r.Experiment)
	} else if r.Node != 0 {
		fmt.Fprintf(&b, "Node %d | %s\n", r.Node, r.Experiment)
	} else {
		fmt.Fprintf(&b, "Experiment %s\n", r.Experiment)
	}
	fmt.Fprintf(
		&b,
		"Interval %.3f ms | %.2f rows/case | sync offset %d | %d of %d samples aligned (%d filtered)\n",
		r.IntervalS*1000,
		r.CaseRows,
		r.Alignment.Offset,
		r.Samples.Aligned,
		r.Samples.Raw,
		r.Samples.Raw-r.Samples.Filtered,
	)

	if len(r.NodeSummary.Cases) > 0 {
		fmt.Fprintf(&b, "Idle Power %d mW\n", roundInt(r.NodeSummary.IdlePowerMW))
		fmt.Fprintf(&b, "Idle Current %d mA\n", roundInt(r.NodeSummary.IdleCurrentMA))
		b.WriteString("\nCase Summary\n")
		fmt.Fprintf(&b, "%4s  %-32s %10s %10s %10s %10s\n", "case", "label", "P extra", "I extra", "P total", "I total")
		for _, c := range r.NodeSummary.Cases {
			fmt.Fprintf(
				&b,
				"%4d  %-32s %7d mW %7d mA %7d mW %7d mA\n",
				c.CaseID,
				c.Label,
				roundInt(c.PowerExtraMW),
				roundInt(c.CurrentExtraMA),
				roundInt(c.PowerMW),
				roundInt(c.CurrentMA),
			)
		}
	} else {
		b.WriteString("No labeled case has stable samples.\n")
	}

	if len(r.Events) > 0 {
		fmt.Fprintf(&b, "\nEvent Energy (baseline %s: %.3f mW / %.3f mA)\n", baselineName(r.Baseline), r.Baseline.PowerMW, r.Baseline.CurrentMA)
		for _, ev := range r.Events {
			fmt.Fprintf(&b, "%4d  %-32s %.9f mWh %.9f mAh\n", ev.CaseID, ev.Label, ev.EnergyMWh, ev.EnergyMAh)
		}
	}
	if s := r.EventSummary; s != nil {
		b.WriteString("\nPer Event\n")
		fmt.Fprintf(&b, "Max extra %f mW / %f mA | max total %f mW / %f mA\n", s.AvgPowerMaxExtraMW, s.AvgCurrentMaxExtraMA, s.AvgPowerMaxTotalMW, s.AvgCurrentMaxTotalMA)
		fmt.Fprintf(&b, "Energy extra %.9f mWh / %.9f mAh\n", s.AvgEnergyExtraMWh, s.AvgEnergyExtraMAh)
		fmt.Fprintf(&b, "Baseline %.9f mWh / %.9f mAh per event\n", s.BaselineEnergyMWh, s.BaselineEnergyMAh)
		fmt.Fprintf(&b, "Energy total %.9f mWh / %.9f mAh\n", s.AvgEnergyTotalMWh, s.AvgEnergyTotalMAh)
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func baselineName(base Baseline) string {
	if base.Label != "" {
		return base.Label
	}
	return string(base.Source)
}

func roundInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
