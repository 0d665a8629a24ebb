package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// runFile is the YAML form of a run. Every field is optional; command-line
// flags take precedence.
//
//	objective: rastrigin
//	dim: 4
//	schedule: cauchy
//	lower: [-5.12]
//	upper: [5.12]
//	maxiter: 1000
//	seed: 7
type runFile struct {
	Objective string    `yaml:"objective"`
	Dim       int       `yaml:"dim"`
	X0        []float64 `yaml:"x0"`
	Lower     []float64 `yaml:"lower"`
	Upper     []float64 `yaml:"upper"`
	Schedule  string    `yaml:"schedule"`
	T0        float64   `yaml:"t0"`
	Tf        *float64  `yaml:"tf"`
	MaxEval   int       `yaml:"maxeval"`
	MaxAccept int       `yaml:"maxaccept"`
	MaxIter   int       `yaml:"maxiter"`
	Boltzmann float64   `yaml:"boltzmann"`
	LearnRate float64   `yaml:"learn_rate"`
	Quench    float64   `yaml:"quench"`
	M         float64   `yaml:"m"`
	N         float64   `yaml:"n"`
	Dwell     *int      `yaml:"dwell"`
	Feps      *float64  `yaml:"feps"`
	NInit     int       `yaml:"ninit"`
	Seed      uint64    `yaml:"seed"`
	Polish    bool      `yaml:"polish"`
}

func loadRunFile(path string) (*runFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	var rf runFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse run file %s: %w", path, err)
	}
	return &rf, nil
}
