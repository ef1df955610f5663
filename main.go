package main

import (
	"github.com/yangluo1024/store-contracts/internal/cli"
)

func main() {
	cli.Execute()
}
