package config

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file overlaying the built-in defaults",
	}
	listenPortFlag = cli.IntFlag{
		Name:  "listen-port",
		Usage: "TCP bind port for the P2P listener",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Usage: "directory for block and account databases",
	}
	nodeKeyPathFlag = cli.StringFlag{
		Name:  "node-key-path",
		Usage: "path to the local keypair seed; created on first run if missing",
	}
	bootnodesFlag = cli.StringFlag{
		Name:  "bootnodes",
		Usage: "comma separated list of host:port seed peers",
	}
	superNodeCountFlag = cli.IntFlag{
		Name:  "super-node-count",
		Usage: "size of the epoch's super node set",
	}
	blockTimeSecondsFlag = cli.IntFlag{
		Name:  "block-time-seconds",
		Usage: "target wall-clock duration of one consensus round",
	}
	rewardedTopXFlag = cli.IntFlag{
		Name:  "rewarded-top-x",
		Usage: "number of top-scoring super nodes eligible for reward per round",
	}
	maxConnectionsFlag = cli.IntFlag{
		Name:  "max-connections",
		Usage: "maximum number of connected P2P peers",
	}
	minPeersFlag = cli.IntFlag{
		Name:  "min-peers",
		Usage: "number of connected peers below which the node dials out for more",
	}
	workerThreadsFlag = cli.IntFlag{
		Name:  "worker-threads",
		Usage: "number of background worker goroutines (stored in the config; no component reads it)",
	}
	enableCompressionFlag = cli.BoolFlag{
		Name:  "enable-compression",
		Usage: "gzip-compress P2P frame payloads",
	}
	enableEncryptionFlag = cli.BoolFlag{
		Name:  "enable-encryption",
		Usage: "AES-GCM encrypt P2P session payloads",
	}
	messageTTLMsFlag = cli.IntFlag{
		Name:  "message-ttl-ms",
		Usage: "maximum age, in milliseconds, of an accepted P2P message",
	}
	feeThresholdFlag = cli.IntFlag{
		Name:  "fee-threshold",
		Usage: "minimum transaction fee accepted into the mempool",
	}

	// Flags lists every flag the node command registers, in the order
	// they should appear in --help.
	Flags = []cli.Flag{
		configFileFlag,
		listenPortFlag,
		dataDirFlag,
		nodeKeyPathFlag,
		bootnodesFlag,
		superNodeCountFlag,
		blockTimeSecondsFlag,
		rewardedTopXFlag,
		maxConnectionsFlag,
		minPeersFlag,
		workerThreadsFlag,
		enableCompressionFlag,
		enableEncryptionFlag,
		messageTTLMsFlag,
		feeThresholdFlag,
	}
)

// FromCLI resolves a Config from ctx, starting from Defaults,
// overlaying the file named by --config (if any), then applying any
// flags the caller explicitly set.
func FromCLI(ctx *cli.Context) (Config, error) {
	cfg, err := LoadFile(Defaults(), ctx.String(configFileFlag.Name))
	if err != nil {
		return cfg, err
	}

	if ctx.IsSet(listenPortFlag.Name) {
		cfg.ListenPort = uint16(ctx.Int(listenPortFlag.Name))
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(nodeKeyPathFlag.Name) {
		cfg.NodeKeyPath = ctx.String(nodeKeyPathFlag.Name)
	}
	if ctx.IsSet(bootnodesFlag.Name) {
		cfg.Bootnodes = splitCSV(ctx.String(bootnodesFlag.Name))
	}
	if ctx.IsSet(superNodeCountFlag.Name) {
		cfg.SuperNodeCount = ctx.Int(superNodeCountFlag.Name)
	}
	if ctx.IsSet(blockTimeSecondsFlag.Name) {
		cfg.BlockTimeSeconds = ctx.Int(blockTimeSecondsFlag.Name)
	}
	if ctx.IsSet(rewardedTopXFlag.Name) {
		cfg.RewardedTopX = ctx.Int(rewardedTopXFlag.Name)
	}
	if ctx.IsSet(maxConnectionsFlag.Name) {
		cfg.MaxConnections = ctx.Int(maxConnectionsFlag.Name)
	}
	if ctx.IsSet(minPeersFlag.Name) {
		cfg.MinPeers = ctx.Int(minPeersFlag.Name)
	}
	if ctx.IsSet(workerThreadsFlag.Name) {
		cfg.WorkerThreads = ctx.Int(workerThreadsFlag.Name)
	}
	if ctx.IsSet(enableCompressionFlag.Name) {
		cfg.EnableCompression = ctx.Bool(enableCompressionFlag.Name)
	}
	if ctx.IsSet(enableEncryptionFlag.Name) {
		cfg.EnableEncryption = ctx.Bool(enableEncryptionFlag.Name)
	}
	if ctx.IsSet(messageTTLMsFlag.Name) {
		cfg.MessageTTLMs = ctx.Int(messageTTLMsFlag.Name)
	}
	if ctx.IsSet(feeThresholdFlag.Name) {
		cfg.FeeThreshold = uint64(ctx.Int(feeThresholdFlag.Name))
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
