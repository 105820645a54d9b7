// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、Backend、Handshake、Pipeline 与 Readiness 五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - Backend 指标：请求总数、请求耗时、Token 用量（prompt/completion），
    按 backend 分组。
  - Handshake 指标：按结果（established/rejected）分组的计数。
  - Pipeline 指标：当前 active/pending 深度 Gauge。
  - Readiness 指标：backend_ready Gauge，一旦置 1 永不回落。
*/
package metrics
