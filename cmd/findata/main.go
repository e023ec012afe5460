// Package main - findata CLI
// 일봉 적재/조회 서버 진입점
//
// 사용법:
//
//	go run ./cmd/findata serve
//	go run ./cmd/findata ingest --symbols IBM,AAPL
//	go run ./cmd/findata ingest --file bars.parquet --symbol IBM
package main

import (
	"os"

	"github.com/wonny/findata/cmd/findata/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
