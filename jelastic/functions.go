package jelastic

// Remote functions used by the resource tree.
const (
	fnGetEnvs                      = "Environment.Control.GetEnvs"
	fnGetEnvInfo                   = "Environment.Control.GetEnvInfo"
	fnSetEnvDisplayName            = "Environment.Control.SetEnvDisplayName"
	fnSetEnvGroup                  = "Environment.Control.SetEnvGroup"
	fnStartEnv                     = "Environment.Control.StartEnv"
	fnStopEnv                      = "Environment.Control.StopEnv"
	fnSleepEnv                     = "Environment.Control.SleepEnv"
	fnCloneEnv                     = "Environment.Control.CloneEnv"
	fnGetSumStat                   = "Environment.Control.GetSumStat"
	fnChangeTopology               = "Environment.Control.ChangeTopology"
	fnGetNodeGroups                = "Environment.Control.GetNodeGroups"
	fnApplyNodeGroupData           = "Environment.Control.ApplyNodeGroupData"
	fnGetContainerEnvVarsByGroup   = "Environment.Control.GetContainerEnvVarsByGroup"
	fnSetContainerEnvVarsByGroup   = "Environment.Control.SetContainerEnvVarsByGroup"
	fnGetContainerVolumesByGroup   = "Environment.Control.GetContainerVolumesByGroup"
	fnAddContainerVolumeByGroup    = "Environment.Control.AddContainerVolumeByGroup"
	fnRemoveContainerVolumeByGroup = "Environment.Control.RemoveContainerVolumeByGroup"
	fnRedeployContainersByGroup    = "Environment.Control.RedeployContainersByGroup"
	fnSetCloudletsCountByID        = "Environment.Control.SetCloudletsCountById"
	fnExecCmdByID                  = "Environment.Control.ExecCmdById"
	fnBindExtDomain                = "Environment.Binder.BindExtDomain"
	fnRemoveExtDomain              = "Environment.Binder.RemoveExtDomain"
	fnReadFile                     = "Environment.File.Read"
	fnGetMountPoints               = "Environment.File.GetMountPoints"
	fnAddMountPointByGroup         = "Environment.File.AddMountPointByGroup"
	fnRemoveMountPointByGroup      = "Environment.File.RemoveMountPointByGroup"
	fnGetGroups                    = "Environment.Group.GetGroups"
	fnCreateGroup                  = "Environment.Group.CreateGroup"
	fnEditGroup                    = "Environment.Group.EditGroup"
	fnRemoveGroup                  = "Environment.Group.RemoveGroup"
	fnGetUserInfo                  = "Users.Account.GetUserInfo"
)
