package linkchar

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	yellow = color.New(color.FgHiYellow).SprintfFunc()
)

func colorPassFail(ok bool) string {
	if ok {
		return green("PASS")
	}
	return red("FAIL")
}

// Render writes the human-readable summary.
func (r *Results) Render(w io.Writer) {
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintln(w, "              CHARACTERIZATION RESULTS")
	fmt.Fprintln(w, "============================================================")
	if r.TestsRun&TestLatency != 0 {
		fmt.Fprintln(w, "  CONTROL PLANE")
		fmt.Fprintf(w, "    Write:   %4d / %4d / %4d us (min/avg/max)\n",
			r.Control.WriteMinUs, r.Control.WriteAvgUs, r.Control.WriteMaxUs)
		fmt.Fprintf(w, "    Read:    %4d / %4d / %4d us (min/avg/max)\n",
			r.Control.ReadMinUs, r.Control.ReadAvgUs, r.Control.ReadMaxUs)
		fmt.Fprintf(w, "    Success: %s (%d/%d)\n",
			yellow("%.2f%%", r.Control.SuccessRatePct),
			r.Control.Transactions-r.Control.Errors, r.Control.Transactions)
	}
	if r.TestsRun&(TestThroughput|TestBER) != 0 {
		fmt.Fprintln(w, "  DATA PLANE")
	}
	if r.TestsRun&TestThroughput != 0 {
		fmt.Fprintf(w, "    Single byte RTT: %4d us\n", r.Stream.SingleByteRTTUs)
		fmt.Fprintf(w, "    Polling:         %4d KB/s\n", r.Stream.PollingKBps)
		fmt.Fprintf(w, "    Buffered:        %4d KB/s\n", r.Stream.BufferedKBps)
	}
	if r.TestsRun&TestBER != 0 {
		fmt.Fprintf(w, "    BER:             %.2e (%d/%d bytes bad)\n",
			r.Stream.BER, r.Stream.ErrorBytes, r.Stream.TotalBytes)
	}
	fmt.Fprintln(w, "------------------------------------------------------------")
	if r.TestsRun&TestConnectivity != 0 {
		fmt.Fprintf(w, "  Connectivity: %s", colorPassFail(r.ConnectivityPass))
	}
	if r.TestsRun&TestConcurrent != 0 {
		fmt.Fprintf(w, "  Concurrent: %s", colorPassFail(r.ConcurrentPass))
	}
	fmt.Fprintf(w, "  Overall: %s  Duration: %d ms\n", colorPassFail(r.Pass), r.Duration.Milliseconds())
	fmt.Fprintln(w, "============================================================")
}

// RenderCSV writes the same figures as machine-parsable metric,value,unit
// lines.
func (r *Results) RenderCSV(w io.Writer) {
	fmt.Fprintln(w, "metric,value,unit")
	fmt.Fprintf(w, "ctrl_write_min,%d,us\n", r.Control.WriteMinUs)
	fmt.Fprintf(w, "ctrl_write_avg,%d,us\n", r.Control.WriteAvgUs)
	fmt.Fprintf(w, "ctrl_write_max,%d,us\n", r.Control.WriteMaxUs)
	fmt.Fprintf(w, "ctrl_read_min,%d,us\n", r.Control.ReadMinUs)
	fmt.Fprintf(w, "ctrl_read_avg,%d,us\n", r.Control.ReadAvgUs)
	fmt.Fprintf(w, "ctrl_read_max,%d,us\n", r.Control.ReadMaxUs)
	fmt.Fprintf(w, "ctrl_success_pct,%.2f,%%\n", r.Control.SuccessRatePct)
	fmt.Fprintf(w, "stream_rtt,%d,us\n", r.Stream.SingleByteRTTUs)
	fmt.Fprintf(w, "stream_polling_kbps,%d,KB/s\n", r.Stream.PollingKBps)
	fmt.Fprintf(w, "stream_buffered_kbps,%d,KB/s\n", r.Stream.BufferedKBps)
	fmt.Fprintf(w, "stream_ber,%.2e,ratio\n", r.Stream.BER)
	fmt.Fprintf(w, "connectivity_pass,%t,bool\n", r.ConnectivityPass)
	fmt.Fprintf(w, "concurrent_pass,%t,bool\n", r.ConcurrentPass)
	fmt.Fprintf(w, "overall_pass,%t,bool\n", r.Pass)
	fmt.Fprintf(w, "test_duration,%d,ms\n", r.Duration.Milliseconds())
}
