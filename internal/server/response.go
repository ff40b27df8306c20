package server

import "github.com/rileyhilliard/slurmdash/internal/slurm"

// Response is the envelope for every /api/v1 reply.
type Response struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
	Detail  string      `json:"detail"`
}

// DataResponse is the shape served on /data/:id, which the browser
// dashboard reads. Status is "success" whenever there is data to show.
type DataResponse struct {
	Status  string             `json:"status"`
	Host    string             `json:"host"`
	Health  string             `json:"health,omitempty"`
	Nodes   []slurm.NodeRecord `json:"nodes,omitempty"`
	Jobs    []slurm.JobRecord  `json:"jobs,omitempty"`
	Message string             `json:"message,omitempty"`
}
