// Command aqoctl is a fake planner/executor caller satisfying the
// planhook interfaces (§6): it does not implement a real query planner,
// only enough of a toy gorm/sqlite catalog to drive the four planner
// callback shapes and the learning pipeline end to end.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "demo":
		err = runDemo(os.Args[2:])
	case "report":
		err = runReport(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "aqoctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: aqoctl demo [-iterations N] [-store DIR]")
	fmt.Fprintln(os.Stderr, "       aqoctl report -store DIR -out FILE.xlsx")
}
