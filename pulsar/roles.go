package pulsar

import (
	"strconv"

	"github.com/docker/go-connections/nat"
	"github.com/pulsarlabs/pulsartest/cluster"
)

// Fixed network aliases of the singleton services.
const (
	ZooKeeperName   = "zookeeper"
	ConfigStoreName = "configuration-store"
	ProxyName       = "pulsar-proxy"
)

// Well-known ports inside the Pulsar containers.
const (
	ZooKeeperPort   nat.Port = "2181/tcp"
	ConfigStorePort nat.Port = "2184/tcp"
	BookiePort      nat.Port = "3181/tcp"
	BrokerPort      nat.Port = "6650/tcp"
	BrokerHTTPPort  nat.Port = "8080/tcp"
)

// DefaultImage is the Pulsar image used when the spec does not name one.
const DefaultImage = "apachepulsar/pulsar-test-latest-version:latest"

// initClusterCommand is run once against the ZooKeeper node to write the
// cluster metadata the other roles read on boot.
var initClusterCommand = []string{"bin/init-cluster.sh"}

// Role identifies what a node runs. Role-specific behavior is data (launch
// command, ports, environment), not a per-role type.
type Role string

const (
	RoleZooKeeper   Role = "zookeeper"
	RoleConfigStore Role = "configuration-store"
	RoleBookie      Role = "bookie"
	RoleBroker      Role = "broker"
	RoleProxy       Role = "proxy"
	RoleWorker      Role = "functions-worker"
	RoleExternal    Role = "external"
)

// scaledName generates the name and network alias for the i'th node of a
// scalable role, e.g. pulsar-broker-0 or pulsar-functions-worker-2.
func scaledName(role Role, i int) string {
	return "pulsar-" + string(role) + "-" + strconv.Itoa(i)
}

// roleCommand maps each role to the launch script baked into the image.
var roleCommand = map[Role][]string{
	RoleZooKeeper:   {"bin/run-local-zk.sh"},
	RoleConfigStore: {"bin/run-global-zk.sh"},
	RoleBookie:      {"bin/run-bookie.sh"},
	RoleBroker:      {"bin/run-broker.sh"},
	RoleProxy:       {"bin/run-proxy.sh"},
	RoleWorker:      {"bin/run-functions-worker.sh"},
}

// roleReady maps each role to its readiness probe. The ZooKeeper family and
// bookies are ready when their client port listens; HTTP-serving roles are
// ready when /metrics responds.
var roleReady = map[Role]cluster.Ready{
	RoleZooKeeper:   {Port: ZooKeeperPort},
	RoleConfigStore: {Port: ConfigStorePort},
	RoleBookie:      {Port: BookiePort},
	RoleBroker:      {Port: BrokerHTTPPort, HTTPPath: "/metrics"},
	RoleProxy:       {Port: BrokerHTTPPort, HTTPPath: "/metrics"},
	RoleWorker:      {Port: BrokerHTTPPort, HTTPPath: "/metrics"},
}

var roleExposedPorts = map[Role][]string{
	RoleZooKeeper:   {string(ZooKeeperPort)},
	RoleConfigStore: {string(ConfigStorePort)},
	RoleBookie:      {string(BookiePort)},
	RoleBroker:      {string(BrokerPort), string(BrokerHTTPPort)},
	RoleProxy:       {string(BrokerPort), string(BrokerHTTPPort)},
	RoleWorker:      {string(BrokerHTTPPort)},
}

func zooKeeperEnv(clusterName string) map[string]string {
	return map[string]string{
		"clusterName":        clusterName,
		"zkServers":          ZooKeeperName,
		"configurationStore": ConfigStoreName + ":" + ConfigStorePort.Port(),
		"pulsarNode":         scaledName(RoleBroker, 0),
	}
}

func configStoreEnv(clusterName string) map[string]string {
	return map[string]string{
		"clusterName": clusterName,
	}
}

func bookieEnv(clusterName string) map[string]string {
	return map[string]string{
		"clusterName":           clusterName,
		"zkServers":             ZooKeeperName,
		"useHostNameAsBookieID": "true",
	}
}

func brokerEnv(clusterName string) map[string]string {
	return map[string]string{
		"clusterName":               clusterName,
		"zkServers":                 ZooKeeperName,
		"zookeeperServers":          ZooKeeperName,
		"configurationStoreServers": ConfigStoreName + ":" + ConfigStorePort.Port(),
		"brokerServiceCompactionMonitorIntervalInSeconds": "1",
	}
}

func proxyEnv(clusterName string) map[string]string {
	return map[string]string{
		"clusterName":               clusterName,
		"zkServers":                 ZooKeeperName,
		"zookeeperServers":          ZooKeeperName,
		"configurationStoreServers": ConfigStoreName + ":" + ConfigStorePort.Port(),
	}
}

// workerEnv builds a function worker's environment. The runtime mode
// changes exactly one thing: THREAD mode adds the thread group name, so the
// worker runs functions as threads of that group instead of separate
// processes.
func workerEnv(clusterName, name string, mode FunctionRuntime) map[string]string {
	broker0 := scaledName(RoleBroker, 0)
	env := map[string]string{
		"PF_workerId":               name,
		"PF_workerHostname":         name,
		"PF_workerPort":             BrokerHTTPPort.Port(),
		"PF_pulsarFunctionsCluster": clusterName,
		"PF_pulsarServiceUrl":       "pulsar://" + broker0 + ":" + BrokerPort.Port(),
		"PF_pulsarWebServiceUrl":    "http://" + broker0 + ":" + BrokerHTTPPort.Port(),
		"clusterName":               clusterName,
		"zookeeperServers":          ZooKeeperName,
		"zkServers":                 ZooKeeperName,
	}
	if mode == ThreadRuntime {
		env["PF_threadContainerFactory_threadGroupName"] = "pf-container-group"
	}
	return env
}
